package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lettermill/lettermill/internal/clock"
	"github.com/lettermill/lettermill/internal/migration"
	"github.com/lettermill/lettermill/internal/observability"
	"github.com/lettermill/lettermill/internal/server"
	"github.com/lettermill/lettermill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(newSnowflakeNode),
		clock.Module,
		db.Module,
		server.Module,
		migration.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
