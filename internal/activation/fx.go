package activation

import (
	"github.com/smallbiznis/tandem/internal/activation/repository"
	"github.com/smallbiznis/tandem/internal/activation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.ProvideIssuer),
)
