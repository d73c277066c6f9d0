package inviteevent

import (
	"github.com/smallbiznis/tandem/internal/inviteevent/repository"
	"github.com/smallbiznis/tandem/internal/inviteevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inviteevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
