package project

import (
	"github.com/lettermill/lettermill/internal/project/repository"
	"github.com/lettermill/lettermill/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
