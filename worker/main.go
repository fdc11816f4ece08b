package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/medlit-tools/semsearch/internal/chunker"
	"github.com/medlit-tools/semsearch/internal/config"
	"github.com/medlit-tools/semsearch/internal/dedupe"
	"github.com/medlit-tools/semsearch/internal/embed"
	"github.com/medlit-tools/semsearch/internal/logger"
	"github.com/medlit-tools/semsearch/internal/models"
	"github.com/medlit-tools/semsearch/internal/vectorstore"
)

type chunkEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type pointUpserter interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

func main() {
	_ = godotenv.Load()

	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store, err := vectorstore.New(cfg.Common, log)
	if err != nil {
		log.Error("init vector store", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	embedder, err := embed.NewOllama(cfg.OllamaAddr, cfg.EmbedModel, cfg.EmbedDim)
	if err != nil {
		log.Error("init embedder", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := store.EnsureCollection(ensureCtx); err != nil {
		cancel()
		log.Error("ensure collection", slog.Any("err", err))
		os.Exit(1)
	}
	cancel()

	splitter := chunker.NewSplitter(cfg.ChunkWindow, cfg.ChunkOverlap)
	if !splitter.TokenAccurate() {
		log.Warn("token encoding unavailable, using character approximation")
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("backend", cfg.VectorBackend),
		slog.Int("chunk_window", cfg.ChunkWindow),
		slog.Int("chunk_overlap", cfg.ChunkOverlap),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, splitter, embedder, store, cache, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// processMessage turns one raw article into chunk points and upserts them.
// A chunk whose embedding call fails is skipped; the article as a whole
// fails only when nothing could be embedded or the upsert errored.
func processMessage(ctx context.Context, log *slog.Logger, splitter *chunker.Splitter, emb chunkEmbedder, store pointUpserter, cache *dedupe.Cache, msg kafka.Message) error {
	var article models.Article
	if err := json.Unmarshal(msg.Value, &article); err != nil {
		return err
	}

	article.Title = strings.TrimSpace(article.Title)
	article.DOI = strings.TrimSpace(article.DOI)
	article.Text = strings.TrimSpace(article.Text)
	if article.Text == "" {
		return errors.New("empty article text")
	}
	if article.Key() == "" {
		return errors.New("article has neither DOI nor title")
	}
	if article.Source == "" {
		article.Source = "unknown"
	}

	key := article.Key()
	if cache.IsSeen(key) {
		log.Debug("duplicate article", slog.String("key", key))
		return nil
	}

	chunks := splitter.Split(article.Text)
	if len(chunks) == 0 {
		return errors.New("no chunks produced")
	}

	ingestedAt := time.Now().Unix()
	points := make([]vectorstore.Point, 0, len(chunks))
	skipped := 0

	for _, ch := range chunks {
		vector, err := emb.Embed(ctx, ch.Text)
		if err != nil {
			var remote *embed.RemoteError
			if errors.As(err, &remote) {
				skipped++
				log.Warn("embedding failed, skipping chunk",
					slog.String("key", key),
					slog.Int("chunk", ch.Index),
					slog.Any("err", err),
				)
				continue
			}
			return err
		}

		points = append(points, vectorstore.Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: models.ChunkPayload{
				Text:       ch.Text,
				Title:      article.Title,
				DOI:        article.DOI,
				Year:       article.Year,
				Journal:    article.Journal,
				Source:     article.Source,
				ChunkIndex: ch.Index,
				ChunkCount: len(chunks),
				IngestedAt: ingestedAt,
			},
		})
	}

	if len(points) == 0 {
		return fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}

	if err := store.Upsert(ctx, points); err != nil {
		return err
	}

	cache.MarkSeen(key)
	log.Info("ingested article",
		slog.String("key", key),
		slog.String("title", article.Title),
		slog.Int("chunks", len(points)),
		slog.Int("skipped", skipped),
	)
	return nil
}

// sendToDLQ forwards a poison message with error context, retrying with
// exponential backoff. Returns false when every attempt failed.
func sendToDLQ(ctx context.Context, log *slog.Logger, writer *kafka.Writer, msg kafka.Message, cause error) bool {
	dlqMsg := kafka.Message{
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}

	for attempt := range 5 {
		if err := writer.WriteMessages(ctx, dlqMsg); err == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		} else {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Warn("DLQ write failed, retrying",
				slog.Any("err", err),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				log.Info("context canceled during DLQ retry")
				return false
			}
		}
	}

	return false
}
