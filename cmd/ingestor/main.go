package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/ingest"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/storage"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	manifestPath := flag.String("manifest", "", "clip manifest path (overrides config)")
	batchSize := flag.Int("batch-size", 20, "clips per published batch job")
	watch := flag.Bool("watch", false, "keep watching the manifest for new clips")
	interval := flag.Duration("interval", 30*time.Second, "watch poll interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting homewatch ingestor")

	manifest := cfg.Ingest.ManifestPath
	if *manifestPath != "" {
		manifest = *manifestPath
	}
	if manifest == "" {
		slog.Error("no manifest path configured")
		os.Exit(1)
	}

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx := context.Background()
	seen := map[string]bool{}

	for {
		published, err := ingestOnce(ctx, cfg, minioStore, producer, manifest, *batchSize, seen)
		if err != nil {
			slog.Error("ingest pass failed", "error", err)
			if !*watch {
				os.Exit(1)
			}
		} else if published > 0 {
			slog.Info("ingest pass complete", "batches", published)
		}

		if !*watch {
			return
		}
		time.Sleep(*interval)
	}
}

// ingestOnce loads the manifest, uploads any unseen clips and publishes
// them as batch jobs. The seen set keeps watch mode from re-publishing.
func ingestOnce(ctx context.Context, cfg *config.Config, minioStore *storage.MinIOStore, producer *queue.Producer, manifest string, batchSize int, seen map[string]bool) (int, error) {
	clips, err := ingest.LoadManifest(manifest, cfg.Ingest.VideoBaseDir)
	if err != nil {
		return 0, err
	}

	var fresh []models.Clip
	for _, clip := range clips {
		if seen[clip.VideoPath] {
			continue
		}
		seen[clip.VideoPath] = true

		key := "clips/" + filepath.Base(clip.VideoPath)
		if err := minioStore.PutFile(ctx, key, clip.VideoPath, "video/mp4"); err != nil {
			slog.Warn("clip upload failed", "path", clip.VideoPath, "error", err)
		}
		fresh = append(fresh, clip)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	published := 0
	for start := 0; start < len(fresh); start += batchSize {
		end := start + batchSize
		if end > len(fresh) {
			end = len(fresh)
		}

		job := models.BatchJob{BatchID: uuid.New(), Clips: fresh[start:end]}
		if err := producer.PublishBatch(ctx, job.BatchID.String(), job); err != nil {
			return published, fmt.Errorf("publish batch: %w", err)
		}
		slog.Info("published batch", "batch_id", job.BatchID, "clips", len(job.Clips))
		published++
	}
	return published, nil
}
