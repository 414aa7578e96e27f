//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/himanishpuri/TimbreMatch/internal/config"
	"github.com/himanishpuri/TimbreMatch/pkg/logger"
	"github.com/himanishpuri/TimbreMatch/pkg/timbre"
	"github.com/spf13/pflag"
)

func main() {
	log := logger.GetLogger()

	flags := pflag.NewFlagSet("timbrematch-server", pflag.ExitOnError)
	configFile := flags.String("config", "", "config file (default ./timbrematch.yaml)")
	flags.Int("port", 0, "HTTP server port")
	flags.String("db", "", "path to the SQLite library")
	flags.String("temp", "", "directory for uploads and rendered audio")
	flags.StringSlice("origins", nil, "allowed CORS origins (use * for all)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Parse(os.Args[1:])

	v, err := config.New(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	for name, key := range map[string]string{
		"port":      "server.port",
		"db":        "database.path",
		"temp":      "temp_dir",
		"origins":   "server.allowed_origins",
		"log-level": "log_level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatalf("Failed to bind --%s: %v", name, err)
		}
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	service, err := timbre.NewService(append(cfg.ServiceOptions(), timbre.WithLogger(log))...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           cfg.Server.Port,
		DBPath:         cfg.Database.Path,
		TempDir:        cfg.TempDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
