package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"flock-server/internal/config"
	"flock-server/internal/server"
	"flock-server/internal/store"
	"flock-server/pkg/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	gin.SetMode(cfg.GinMode)

	// An unreachable store at boot is fatal; the relay must not come up
	// and then fail every subscribe authorization.
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("store unavailable", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	if err := st.Ping(); err != nil {
		slog.Error("store unavailable", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Deps{Store: st})
	slog.Info("listening", "port", cfg.Port)
	if err := server.Run(cfg, router); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
