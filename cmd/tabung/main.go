package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tabung/internal/config"
	"github.com/smallbiznis/tabung/internal/metricspush"
	"github.com/smallbiznis/tabung/internal/migration"
	"github.com/smallbiznis/tabung/internal/observability"
	"github.com/smallbiznis/tabung/internal/server"
	"github.com/smallbiznis/tabung/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		metricspush.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
