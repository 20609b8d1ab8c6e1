package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mydia/mydia/config"
	HTTPAdapter "github.com/mydia/mydia/internal/adapter/http"
	sqlitestore "github.com/mydia/mydia/internal/adapter/storage/sqlite"
	"github.com/mydia/mydia/internal/adapter/transcoder/ffmpeg"
	"github.com/mydia/mydia/internal/infrastructure/logger"
	"github.com/mydia/mydia/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}

	logger.Info.Printf("starting mydiad on port %d, data=%s, capacity=%d",
		cfg.Port, cfg.DataDir, cfg.MaxConcurrentTranscodes)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error.Printf("failed to create data directory: %v", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Join(cfg.DataDir, "transcodes"), 0755); err != nil {
		logger.Error.Printf("failed to create transcode directory: %v", err)
		os.Exit(1)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		logger.Error.Printf("failed to create store: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	jobStore := sqlitestore.NewJobStore(store)
	factory := ffmpeg.NewFactory(
		ffmpeg.WithBinary(cfg.FFmpegBinary),
		ffmpeg.WithProbeBinary(cfg.FFprobeBinary),
	)
	eventBus := service.NewEventBus()

	// The scheduler loop owns all admission state; it runs until shutdown
	// and cancels in-flight encoders on the way out.
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	scheduler := service.NewScheduler(factory, cfg.MaxConcurrentTranscodes)
	schedDone := make(chan struct{})
	go func() {
		scheduler.Run(schedCtx)
		close(schedDone)
	}()

	transcodeSvc := service.NewTranscodeService(jobStore, scheduler, eventBus, cfg.DataDir)
	server := HTTPAdapter.NewServer(transcodeSvc, cfg.BehindProxy)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info.Printf("received %s, shutting down", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}

		// Stop the scheduler; running encoders are killed and their
		// staged outputs removed. Rows keep their last status; the next
		// request for the key schedules the encode again.
		schedCancel()
		<-schedDone

		logger.Info.Printf("shutdown complete")
	}()

	logger.Info.Printf("server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error.Printf("server failed: %v", err)
		os.Exit(1)
	}
}
