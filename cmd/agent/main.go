package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"clusterdash/internal/agent"
	"clusterdash/internal/app"
	"clusterdash/internal/config"
	"clusterdash/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func main() {
	configDir := os.Getenv("CLUSTERDASH_CONFIG_DIR")
	if configDir == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			logrus.Fatalf("Error getting user config directory: %v", err)
		}
		configDir = dir
	}

	cfg, err := config.LoadConfig(viper.New(), configDir)
	if err != nil {
		logrus.Fatalf("Error loading configuration: %v", err)
	}
	if err := logging.Setup(cfg.LogLevel, os.Stderr); err != nil {
		logrus.Fatalf("Error setting up logging: %v", err)
	}

	logrus.Infof("Reporting to %s", cfg.ServerURL)

	container := app.NewContainer(cfg)
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := agent.NewSystemCollector(cfg.Agent.Hostname, agent.NewNVMLReader())
	if err := agent.New(collector, container.Client, cfg.Agent).Run(ctx); err != nil {
		logrus.Errorf("Agent stopped: %v", err)
		os.Exit(1)
	}
}
