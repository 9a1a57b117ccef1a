package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"clawctl/pkg/compose"
	"clawctl/pkg/gateway"
	"clawctl/pkg/setup"
)

var (
	runtimeDir     = flag.String("runtime-dir", "", "Gateway state directory (default ~/.openclaw)")
	envFile        = flag.String("env-file", ".env", "Path to the secrets file")
	projectDir     = flag.String("project-dir", ".", "Directory holding the compose file")
	configTemplate = flag.String("config-template", "", "Config template override: local path or gs://bucket/object")
	readyMarker    = flag.String("ready-marker", gateway.DefaultReadyMarker, "Log line that signals gateway readiness")
	readyAttempts  = flag.Int("ready-attempts", gateway.DefaultReadyAttempts, "Readiness poll attempts")
	readyInterval  = flag.Duration("ready-interval", gateway.DefaultReadyInterval, "Delay between readiness polls")
	logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	log := logger.WithField("component", "clawctl")

	if *runtimeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.WithError(err).Fatal("Cannot determine home directory, pass -runtime-dir")
		}
		*runtimeDir = filepath.Join(home, ".openclaw")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := compose.NewDriver(compose.Config{
		ProjectDir: *projectDir,
		Logger:     logger,
	})

	pipeline := setup.New(setup.Config{
		RuntimeDir:  *runtimeDir,
		EnvFile:     *envFile,
		ProjectDir:  *projectDir,
		TemplateRef: *configTemplate,
		Ready: gateway.MonitorConfig{
			Marker:   *readyMarker,
			Attempts: *readyAttempts,
			Interval: *readyInterval,
		},
	}, driver, logger)

	switch flag.Arg(0) {
	case "":
		if err := pipeline.Run(ctx); err != nil {
			log.WithError(err).Error("Setup failed")
			os.Exit(1)
		}
	case "reset":
		err := pipeline.Reset(ctx)
		if errors.Is(err, setup.ErrNotConfirmed) {
			return
		}
		if err != nil {
			log.WithError(err).Error("Reset failed")
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: clawctl [flags] [reset]\n")
		os.Exit(1)
	}
}
