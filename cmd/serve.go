package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	gommon "github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"dreamer/pkg/analysis"
	"dreamer/pkg/config"
	"dreamer/pkg/generate"
	"dreamer/pkg/metrics"
	"dreamer/pkg/relay"
	"dreamer/pkg/server"
	"dreamer/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	records, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeStore()
	log.Info("loaded dream records", "driver", cfg.Store.Driver, "path", cfg.Store.Path, "count", len(records.List()))

	llm, jsonSchema, err := newLLM(cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	image, err := newImageAdapter(cfg.Image)
	if err != nil {
		return err
	}
	video, err := newVideoAdapter(cfg.Video)
	if err != nil {
		return err
	}

	srv := server.NewServer(ctx, server.Deps{
		Analysis: analysis.New(llm, newChat(cfg.Chat), analysis.Options{
			MaxPromptTokens: cfg.LLM.MaxPromptTokens,
			JSONSchema:      jsonSchema,
		}),
		Generate: generate.New(generate.Config{
			Image:     image,
			Video:     video,
			ImagePoll: pollConfig(cfg.Image),
			VideoPoll: pollConfig(cfg.Video),
		}),
		Relay: relay.New(utils.PublicClient(0), relay.Config{
			MaxBytes: cfg.Relay.MaxBytes,
			CacheTTL: cfg.Relay.CacheTTL,
		}),
		Store:   records,
		Metrics: metrics.New(),
	})
	srv.Echo.Logger.SetLevel(gommon.INFO)
	if cfg.LogLevel == "debug" {
		srv.Echo.Logger.SetLevel(gommon.DEBUG)
	}

	log.Info("providers configured", "llm", llm.Name(), "image", image.Name(), "video", video.Name())

	finishedShutDown := make(chan struct{})
	go func() {
		defer close(finishedShutDown)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	}()

	if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		done()
		<-finishedShutDown
		return err
	}
	<-finishedShutDown
	return nil
}
