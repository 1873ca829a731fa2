package email

import (
	"github.com/lettermill/lettermill/internal/email/repository"
	"github.com/lettermill/lettermill/internal/email/service"
	"go.uber.org/fx"
)

var Module = fx.Module("email.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideAttachment),
	fx.Provide(service.New),
)
