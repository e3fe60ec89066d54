package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/kswift/oreotrends/internal/aggregator"
	"github.com/kswift/oreotrends/internal/cache"
	"github.com/kswift/oreotrends/internal/config"
	"github.com/kswift/oreotrends/internal/keywords"
	"github.com/kswift/oreotrends/internal/metrics"
	"github.com/kswift/oreotrends/internal/models"
	"github.com/kswift/oreotrends/internal/notify"
	"github.com/kswift/oreotrends/internal/poller"
	"github.com/kswift/oreotrends/internal/sentiment"
	"github.com/kswift/oreotrends/internal/server"
	"github.com/kswift/oreotrends/internal/sources"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	log.SetLevel(config.ParseLogLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	set := keywords.Default()
	if cfg.KeywordsFile != "" {
		set, err = keywords.Load(cfg.KeywordsFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to load keywords file")
		}
	}
	log.WithFields(logrus.Fields{
		"version":  set.Version(),
		"products": len(set.Category(models.CategoryProduct)),
		"flavors":  len(set.Category(models.CategoryFlavor)),
	}).Info("Keyword set loaded")

	seen := cache.New(cfg.SeenRetention)
	defer seen.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	pipelineMetrics := metrics.New(registry)

	agg := aggregator.New(set, seen, cfg.Bucket, log)

	query := set.SearchQuery()
	var platformCollectors []models.Collector
	if cfg.TwitterBearerToken != "" {
		platformCollectors = append(platformCollectors, sources.NewTwitterClient(sources.TwitterConfig{
			BearerToken: cfg.TwitterBearerToken,
			Query:       query,
			MaxResults:  cfg.TwitterResults,
			Timeout:     cfg.RequestTimeout,
		}, log))
	}
	if cfg.YouTubeAPIKey != "" {
		platformCollectors = append(platformCollectors, sources.NewYouTubeClient(sources.YouTubeConfig{
			APIKey:           cfg.YouTubeAPIKey,
			Query:            query,
			MaxResults:       cfg.YouTubeResults,
			CommentsPerVideo: cfg.CommentsPerVideo,
			Timeout:          cfg.RequestTimeout,
		}, log))
	}

	var classifier poller.SentimentClassifier
	if cfg.OpenAIAPIKey != "" {
		classifier = sentiment.NewClient(cfg.OpenAIAPIKey)
		log.Info("Sentiment classification enabled")
	}

	var notifier poller.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to set up telegram alerts")
		}
	}

	p := poller.New(platformCollectors, agg, poller.Config{
		Interval:        cfg.PollInterval,
		SpikeThreshold:  cfg.SpikeThreshold,
		SentimentSample: cfg.SentimentSample,
	}, pipelineMetrics, log, classifier, notifier)

	srv := server.New(cfg.ServerPort, agg, set, p, registry, log)
	srv.Start()
	log.WithField("port", cfg.ServerPort).Info("Starting oreotrends")

	go p.Run(ctx)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	log.Info("oreotrends stopped gracefully")
}
