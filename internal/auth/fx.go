package auth

import (
	"github.com/lettermill/lettermill/internal/auth/repository"
	"github.com/lettermill/lettermill/internal/auth/service"
	"github.com/lettermill/lettermill/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideSession),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
