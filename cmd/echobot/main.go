package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"echobot/pkg/config"
	"echobot/pkg/jenkins"
	"echobot/pkg/jira"
	"echobot/pkg/llm"
	"echobot/pkg/reportportal"
	"echobot/pkg/router"
	"echobot/pkg/server"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file (environment overrides file values)")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading configuration failed", zap.Error(err))
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	backends := make(map[string]server.Pinger)

	var ci router.CIClient
	if cfg.JenkinsConfigured() {
		client := jenkins.NewClient(jenkins.Options{
			URL:                cfg.Jenkins.URL,
			Username:           cfg.Jenkins.Username,
			APIToken:           cfg.Jenkins.APIToken,
			InsecureSkipVerify: cfg.Jenkins.InsecureSkipVerify,
		})
		ci = client
		backends["jenkins"] = client
		logger.Info("Jenkins backend enabled", zap.String("url", cfg.Jenkins.URL))
	} else {
		logger.Info("Jenkins backend disabled (not configured)")
	}

	var dashboard router.DashboardClient
	if cfg.ReportPortalConfigured() {
		client := reportportal.NewClient(reportportal.Options{
			Endpoint:           cfg.ReportPortal.Endpoint,
			UUID:               cfg.ReportPortal.UUID,
			Project:            cfg.ReportPortal.Project,
			InsecureSkipVerify: cfg.ReportPortal.InsecureSkipVerify,
		})
		dashboard = client
		backends["reportportal"] = client
		logger.Info("ReportPortal backend enabled",
			zap.String("endpoint", cfg.ReportPortal.Endpoint),
			zap.String("project", cfg.ReportPortal.Project))
	} else {
		logger.Info("ReportPortal backend disabled (not configured)")
	}

	var tracker router.TrackerClient
	if cfg.JiraConfigured() {
		client := jira.NewClient(jira.Options{
			URL:                cfg.Jira.URL,
			APIToken:           cfg.Jira.APIToken,
			ProjectKey:         cfg.Jira.ProjectKey,
			InsecureSkipVerify: cfg.Jira.InsecureSkipVerify,
		})
		tracker = client
		backends["jira"] = client
		logger.Info("Jira backend enabled",
			zap.String("url", cfg.Jira.URL),
			zap.String("project", cfg.Jira.ProjectKey))
	} else {
		logger.Info("Jira backend disabled (not configured)")
	}

	var model llm.Completer
	if cfg.ModelConfigured() {
		switch cfg.Model.Provider {
		case config.ProviderOllama:
			client := llm.NewOllamaClient(llm.OllamaOptions{
				Host:  cfg.Model.OllamaHost,
				Model: cfg.Model.OllamaModel,
			})
			model = client
			backends["model"] = client
		default:
			client, err := llm.NewHostedClient(llm.HostedOptions{
				Endpoint:           cfg.Model.Endpoint,
				ModelID:            cfg.Model.ModelID,
				AccessToken:        cfg.Model.AccessToken,
				InsecureSkipVerify: cfg.Model.InsecureSkipVerify,
			})
			if err != nil {
				logger.Fatal("creating model client failed", zap.Error(err))
			}
			model = client
			backends["model"] = client
		}
		logger.Info("model backend enabled", zap.String("model", model.Name()))
	} else {
		logger.Info("model backend disabled (not configured)")
	}

	srv := server.New(server.Options{
		Router:   router.New(ci, dashboard, tracker, model, logger),
		Logger:   logger,
		Backends: backends,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
