package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aitechdaily/digest/app/api"
	"github.com/aitechdaily/digest/app/cfg"
	"github.com/aitechdaily/digest/app/collectors"
	"github.com/aitechdaily/digest/app/compose"
	"github.com/aitechdaily/digest/app/database"
	"github.com/aitechdaily/digest/app/delivery"
	"github.com/aitechdaily/digest/app/enrich"
	"github.com/aitechdaily/digest/app/pipeline"
	"github.com/aitechdaily/digest/app/scheduler"
	"github.com/aitechdaily/digest/app/sources"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(c.Debug)
	slog.Info("Starting AI Tech Daily", "version", c.Version)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "migration_version", version, "dirty", dirty)

	sourcesCfg, err := sources.Load(c.SourcesFile)
	if err != nil {
		slog.Error("Failed to load sources", "file", c.SourcesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "rss_feeds", len(sourcesCfg.RSS),
		"subreddits", len(sourcesCfg.Reddit.Subreddits))

	httpClient := &http.Client{}

	articleRepo := database.NewArticleRepository(db)
	subscriberRepo := database.NewSubscriberRepository(db)
	emailLogRepo := database.NewEmailLogRepository(db)

	openAIClient := enrich.NewOpenAIClient(c.OpenAIKey, c.OpenAIModel)
	if c.OpenAIKey == "" {
		slog.Warn("OpenAI key not set, articles will get fallback enrichment")
	}

	emailSender := delivery.NewEmailSender(c.SMTPHost, c.SMTPPort, c.SMTPUser,
		c.SMTPPassword, c.EmailFrom, c.BaseUrl, subscriberRepo, emailLogRepo)
	telegramNotifier := delivery.NewTelegramNotifier(c.TelegramToken, c.TelegramChat)

	runner := pipeline.NewRunner(pipeline.Deps{
		RSS:        collectors.NewRSSCollector(sourcesCfg.RSS, c.UserAgent),
		HackerNews: collectors.NewHackerNewsCollector(sourcesCfg.HackerNews, httpClient, c.UserAgent),
		Reddit:     collectors.NewRedditCollector(sourcesCfg.Reddit, httpClient, c.UserAgent),
		Trending:   collectors.NewTrendingCollector(httpClient, c.UserAgent),
		Extractor:  enrich.NewContentExtractor(httpClient, c.UserAgent),
		Enricher:   enrich.NewAnalyzer(openAIClient),
		Composer:   compose.NewComposer(openAIClient),
		Email:      emailSender,
		Telegram:   telegramNotifier,
		Articles:   articleRepo,

		Subreddits:   sourcesCfg.Reddit.Subreddits,
		HNLimit:      sourcesCfg.HackerNews.TopStoriesLimit,
		RecencyHours: c.RecencyHours,
		EnrichLimit:  c.EnrichLimit,
	})

	if c.SchedulerEnabled {
		sched := scheduler.NewScheduler(runner, c.DigestHour, c.WeeklyHour, time.Local)
		sched.Start()
		defer sched.Stop()
	} else {
		slog.Info("Scheduler disabled, pipeline runs via API triggers only")
	}

	apiHandler := api.NewHandler(runner, articleRepo, c.Version)
	server := api.NewServer(apiHandler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:        ":" + c.Port,
		Handler:     server,
		ReadTimeout: 30 * time.Second,
		// No write timeout: the progress stream endpoint holds its
		// connection open for the lifetime of a pipeline run.
		IdleTimeout: 120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
