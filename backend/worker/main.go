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

	"github.com/DeafMist/travel-guide/backend/internal/config"
	"github.com/DeafMist/travel-guide/backend/internal/dedupe"
	"github.com/DeafMist/travel-guide/backend/internal/elasticsearch"
	"github.com/DeafMist/travel-guide/backend/internal/gpx"
	"github.com/DeafMist/travel-guide/backend/internal/logger"
	"github.com/DeafMist/travel-guide/backend/internal/models"
	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source/yamlbook"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

type trackExporter interface {
	GetByID(ctx context.Context, id travel.Identifier, lang string, wantGeometry bool, cb travel.GeometryCallback) *travel.Article
	LoadGeometry(a *travel.Article, cb travel.GeometryCallback) <-chan *gpx.File
	MaterializeTrack(ctx context.Context, a *travel.Article, dir string) (string, error)
}

type exportKey struct {
	file, routeID, title, lang string
}

func main() {
	_ = godotenv.Load()
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	library := yamlbook.NewLibrary(cfg.BooksDir, log)
	if _, err := library.Reload(); err != nil {
		log.Error("load travel books", slog.Any("err", err))
		os.Exit(1)
	}

	repo := travel.NewRepository(library,
		travel.WithLogger(log),
		travel.WithSavedStore(esClient),
		travel.WithCollator(processing.NewPrimaryCollator(cfg.DefaultLang)),
		travel.WithGeometryWorkers(cfg.GeometryWorkers),
	)
	defer repo.Close()

	recent := dedupe.NewWindow[exportKey](cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1,
		MaxBytes:       1e6,
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
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.String("gpx_dir", cfg.GPXDir),
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

		if err := processMessage(ctx, log, repo, recent, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			dlqMsg := kafka.Message{
				Key:   msg.Key,
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			if !writeDLQ(ctx, log, dlqWriter, dlqMsg) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// writeDLQ retries the dead letter write with exponential backoff.
func writeDLQ(ctx context.Context, log *slog.Logger, w *kafka.Writer, msg kafka.Message) bool {
	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, msg)
		if dlqErr == nil {
			log.Info("message sent to DLQ", slog.Int("attempt", attempt+1))
			return true
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
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
	return false
}

func processMessage(ctx context.Context, log *slog.Logger, repo trackExporter, recent *dedupe.Window[exportKey], cfg *config.Worker, msg kafka.Message) error {
	var req models.ExportRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode export request: %w", err)
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Lang = strings.TrimSpace(req.Lang)
	if req.Title == "" && req.RouteID == "" {
		return errors.New("export request without title or route id")
	}
	if req.Lang == "" {
		req.Lang = cfg.DefaultLang
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log = log.With(slog.String("request_id", req.RequestID))

	key := exportKey{file: req.File, routeID: req.RouteID, title: req.Title, lang: req.Lang}
	if recent.Seen(key) {
		log.Debug("duplicate export request", slog.String("title", req.Title))
		return nil
	}

	id := travel.Identifier{File: req.File, RouteID: req.RouteID, Title: req.Title, Lat: travel.NoLocation, Lon: travel.NoLocation}
	if req.Lat != nil && req.Lon != nil {
		id.Lat, id.Lon = *req.Lat, *req.Lon
	}

	article := repo.GetByID(ctx, id, req.Lang, false, nil)
	if article == nil {
		return fmt.Errorf("article %q (%s) not found", req.Title, req.Lang)
	}

	if article.Kind == travel.KindDescription && !article.GeometryLoaded() {
		waitCtx, cancel := context.WithTimeout(ctx, cfg.GeometryWait)
		defer cancel()
		select {
		case <-repo.LoadGeometry(article, nil):
		case <-waitCtx.Done():
			return fmt.Errorf("wait for geometry of %q: %w", article.Title, waitCtx.Err())
		}
	}

	path, err := repo.MaterializeTrack(ctx, article, cfg.GPXDir)
	if err != nil {
		return err
	}

	recent.Mark(key)
	log.Info("exported track", slog.String("title", article.Title), slog.String("path", path))
	return nil
}
