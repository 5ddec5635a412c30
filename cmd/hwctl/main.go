// hwctl is the operations CLI: enrollment, batch processing, daily
// summaries and ad-hoc questions without going through the services.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/enroll"
	"github.com/your-org/homewatch/internal/identity"
	"github.com/your-org/homewatch/internal/ingest"
	"github.com/your-org/homewatch/internal/llm"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/persist"
	"github.com/your-org/homewatch/internal/pipeline"
	"github.com/your-org/homewatch/internal/reason"
	"github.com/your-org/homewatch/internal/retrieval"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/internal/summary"
	"github.com/your-org/homewatch/internal/vision"
)

const usage = `usage: hwctl <command> [flags]

commands:
  enroll            enroll family reference photos
  scan              scan manifest clips and report detections
  fuse-and-persist  run the full pipeline over manifest clips
  summarize-day     generate the daily summary for one date
  summarize-all     generate summaries for every unsummarized date
  ask               answer a natural-language question
  clear-store       delete all stored data (requires --confirm)
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "enroll":
		err = runEnroll(ctx, os.Args[2:])
	case "scan":
		err = runScan(ctx, os.Args[2:])
	case "fuse-and-persist":
		err = runFuseAndPersist(ctx, os.Args[2:])
	case "summarize-day":
		err = runSummarizeDay(ctx, os.Args[2:])
	case "summarize-all":
		err = runSummarizeAll(ctx, os.Args[2:])
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	case "clear-store":
		err = runClearStore(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func loadConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "configs/config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func initONNX() error {
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

func runEnroll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("enroll", flag.ExitOnError)
	dir := fs.String("dir", "", "directory of reference photos (defaults to config enroll_dir)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *dir == "" {
		*dir = cfg.Ingest.EnrollDir
	}
	if *dir == "" {
		return fmt.Errorf("no enrollment directory given")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initONNX(); err != nil {
		return err
	}
	defer ort.DestroyEnvironment()

	scanner, err := vision.NewScanner(cfg.Vision, cfg.Tracking, nil)
	if err != nil {
		return err
	}
	defer scanner.Close()

	res, err := enroll.NewEnroller(db, scanner).Enroll(ctx, *dir)
	if err != nil {
		return err
	}
	fmt.Printf("enrolled %d persons, %d faces (%d photos skipped)\n",
		res.Persons, res.Faces, res.Skipped)
	return nil
}

func runScan(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	manifest := fs.String("manifest", "", "clip manifest path (defaults to config manifest_path)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	clips, err := loadClips(cfg, *manifest)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initONNX(); err != nil {
		return err
	}
	defer ort.DestroyEnvironment()

	scanner, err := vision.NewScanner(cfg.Vision, cfg.Tracking, identity.NewArbiter(db, cfg.Identity))
	if err != nil {
		return err
	}
	defer scanner.Close()

	for _, clip := range clips {
		res, err := scanner.Scan(ctx, clip)
		if err != nil {
			slog.Warn("scan failed", "clip", clip.VideoPath, "error", err)
			continue
		}
		total := 0
		for _, frame := range res.Frames {
			total += len(frame)
		}
		fmt.Printf("%s camera=%s frames=%d detections=%d duration=%.1fs\n",
			clip.VideoPath, clip.Camera, res.SampledFrames, total, res.Clip.Duration)
	}
	return nil
}

func runFuseAndPersist(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fuse-and-persist", flag.ExitOnError)
	manifest := fs.String("manifest", "", "clip manifest path (defaults to config manifest_path)")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	clips, err := loadClips(cfg, *manifest)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := initONNX(); err != nil {
		return err
	}
	defer ort.DestroyEnvironment()

	// Keyframe snapshots are skipped when MinIO is unreachable; the
	// event records themselves do not depend on it.
	var objects *storage.MinIOStore
	if s, err := storage.NewMinIOStore(cfg.MinIO); err == nil {
		objects = s
	} else {
		slog.Warn("minio unavailable, keyframes will not be stored", "error", err)
	}

	llmClient := llm.NewOpenAIClient(cfg.LLM)
	pipe := pipeline.New(*cfg,
		identity.NewArbiter(db, cfg.Identity),
		reason.NewReasoner(llmClient, cfg.LLM),
		persist.NewPersister(db, objects, nil))

	stored, err := pipe.Run(ctx, clips)
	if err != nil {
		return err
	}
	for _, ev := range stored {
		fmt.Printf("%s %s [%s] %s\n",
			ev.ID, ev.StartTime.Format("2006-01-02 15:04:05"), ev.CameraLocation, ev.LLMDescription)
	}
	fmt.Printf("persisted %d events from %d clips\n", len(stored), len(clips))
	return nil
}

func runSummarizeDay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summarize-day", flag.ExitOnError)
	dateStr := fs.String("date", "", "date to summarize (YYYY-MM-DD)")
	force := fs.Bool("force", false, "regenerate an existing summary")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if *dateStr == "" {
		return fmt.Errorf("missing -date")
	}
	date, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", *dateStr)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := summary.NewSummarizer(db, llm.NewOpenAIClient(cfg.LLM)).SummarizeDay(ctx, date, *force)
	if err != nil {
		return err
	}
	if id == 0 {
		fmt.Printf("no events on %s\n", *dateStr)
		return nil
	}
	fmt.Printf("summary %d stored for %s\n", id, *dateStr)
	return nil
}

func runSummarizeAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summarize-all", flag.ExitOnError)
	force := fs.Bool("force", false, "regenerate existing summaries")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	count, err := summary.NewSummarizer(db, llm.NewOpenAIClient(cfg.LLM)).SummarizeAll(ctx, *force)
	if err != nil {
		return err
	}
	fmt.Printf("generated %d summaries\n", count)
	return nil
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	question := fs.Arg(0)
	if question == "" {
		return fmt.Errorf("usage: hwctl ask [flags] <question>")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var objects *storage.MinIOStore
	if s, err := storage.NewMinIOStore(cfg.MinIO); err == nil {
		objects = s
	}

	engine := retrieval.NewEngine(db, objects, llm.NewOpenAIClient(cfg.LLM), *cfg)
	answer, err := engine.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(answer.Answer)
	for _, url := range answer.Images {
		fmt.Println(url)
	}
	return nil
}

func runClearStore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear-store", flag.ExitOnError)
	confirm := fs.Bool("confirm", false, "required; deletes every person, event and summary")
	cfg, err := loadConfig(fs, args)
	if err != nil {
		return err
	}
	if !*confirm {
		return fmt.Errorf("refusing to clear the store without --confirm")
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Println("store cleared")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*storage.PostgresStore, error) {
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func loadClips(cfg *config.Config, manifest string) ([]models.Clip, error) {
	if manifest == "" {
		manifest = cfg.Ingest.ManifestPath
	}
	if manifest == "" {
		return nil, fmt.Errorf("no manifest path given")
	}
	clips, err := ingest.LoadManifest(manifest, cfg.Ingest.VideoBaseDir)
	if err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("manifest %s contains no usable clips", manifest)
	}
	return clips, nil
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
