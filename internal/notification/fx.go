package notification

import (
	"github.com/smallbiznis/tandem/internal/config"
	"github.com/smallbiznis/tandem/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewProviderFromConfig),
	fx.Provide(newDispatcherFromConfig),
)

// NewProviderFromConfig returns the SMTP provider when a relay is configured.
func NewProviderFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if !cfg.Email.Enabled() {
		log.Info("smtp not configured, emails are dropped")
		return NoOpProvider{}
	}
	return NewSMTP(SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}

func newDispatcherFromConfig(cfg config.Config, provider Provider, m *metrics.Metrics, log *zap.Logger) Dispatcher {
	return NewDispatcher(provider, cfg.Email.AdminRecipients, m, log)
}
