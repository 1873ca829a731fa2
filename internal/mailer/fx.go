package mailer

import (
	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewProvider selects the configured transport.
func NewProvider(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Mailer.Provider {
	case config.ProviderGraph:
		return NewGraph(cfg, log)
	case config.ProviderSMTP:
		return NewSMTP(cfg, log)
	default:
		return NewNoOp(log)
	}
}

var Module = fx.Module("mailer",
	fx.Provide(NewProvider),
)
