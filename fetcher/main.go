package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/medlit-tools/semsearch/internal/config"
	"github.com/medlit-tools/semsearch/internal/logger"
	"github.com/medlit-tools/semsearch/internal/models"
	"github.com/medlit-tools/semsearch/internal/publisher"
)

func main() {
	_ = godotenv.Load()

	log := logger.New("fetcher")
	cfg, err := config.LoadFetcher()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	client, err := publisher.New(cfg.PublisherBaseURL, cfg.PublisherAPIKey, log)
	if err != nil {
		log.Error("init publisher client", slog.Any("err", err))
		os.Exit(1)
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		MaxAttempts: 3,
	})
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info("fetcher running",
		slog.Duration("interval", cfg.Interval),
		slog.Any("contexts", cfg.Contexts),
		slog.Int("articles_per_context", cfg.ArticlesPerContext),
	)

	// Run immediately on start, then on every tick.
	runOnce(ctx, log, client, writer, cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
			return
		case <-ticker.C:
			runOnce(ctx, log, client, writer, cfg)
		}
	}
}

// runOnce fetches recent articles for every configured context and publishes
// them to Kafka. A failed context ends that context's run; the others still
// proceed.
func runOnce(ctx context.Context, log *slog.Logger, client *publisher.Client, writer *kafka.Writer, cfg *config.Fetcher) {
	start := time.Now()
	attempted := 0
	published := 0

	for _, searchContext := range cfg.Contexts {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		articles, err := client.RecentArticles(runCtx, searchContext, cfg.ArticlesPerContext)
		cancel()
		if err != nil {
			log.Error("fetch recent articles",
				slog.String("context", searchContext),
				slog.Any("err", err),
			)
			if len(articles) == 0 {
				continue
			}
			// Publish whatever came back before the failure.
		}

		if len(articles) == 0 {
			log.Warn("no articles found", slog.String("context", searchContext))
			continue
		}

		for _, article := range articles {
			attempted++
			if publishArticle(ctx, log, writer, searchContext, article) {
				published++
			}
		}
	}

	log.Info("fetch run completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("attempted", attempted),
		slog.Int("published", published),
	)
}

func publishArticle(ctx context.Context, log *slog.Logger, writer *kafka.Writer, searchContext string, article publisher.Article) bool {
	raw := models.Article{
		Title:     article.Title,
		DOI:       article.DOI,
		Year:      article.Year,
		Journal:   article.Journal,
		Volume:    article.Volume,
		Issue:     article.Issue,
		Source:    "onesearch-" + searchContext,
		Text:      article.Body,
		FetchedAt: time.Now().UTC(),
	}

	if raw.Key() == "" || raw.Text == "" {
		log.Warn("skipping article without identity or text",
			slog.String("context", searchContext),
		)
		return false
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		log.Error("marshal article", slog.String("key", raw.Key()), slog.Any("err", err))
		return false
	}

	msg := kafka.Message{
		Key:   []byte(raw.Key()),
		Value: payload,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error("publish article", slog.String("key", raw.Key()), slog.Any("err", err))
		return false
	}

	log.Debug("published article", slog.String("key", raw.Key()))
	return true
}
