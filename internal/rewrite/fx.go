package rewrite

import (
	"github.com/lettermill/lettermill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewService(cfg config.Config, log *zap.Logger) Service {
	return NewClient(cfg, log)
}

var Module = fx.Module("rewrite",
	fx.Provide(NewService),
)
