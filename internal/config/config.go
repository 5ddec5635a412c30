package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Vision    VisionConfig    `yaml:"vision"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Identity  IdentityConfig  `yaml:"identity"`
	Fusion    FusionConfig    `yaml:"fusion"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	MinBBoxSide        int     `yaml:"min_bbox_side"`
	SampleFPS          float64 `yaml:"sample_fps"`
	WorkerCount        int     `yaml:"worker_count"`
}

type TrackingConfig struct {
	IoUThreshold       float64 `yaml:"iou_threshold"`
	RevalidateInterval int     `yaml:"revalidate_interval"`
	MaxAge             int     `yaml:"max_age"`
}

type IdentityConfig struct {
	FaceThreshold     float64       `yaml:"face_threshold"`
	BodyThreshold     float64       `yaml:"body_threshold"`
	SoftBodyThreshold float64       `yaml:"soft_body_threshold"`
	BodyCacheWindow   time.Duration `yaml:"body_cache_window"`
}

type FusionConfig struct {
	TimeGap        time.Duration `yaml:"time_gap"`
	StrangerGap    time.Duration `yaml:"stranger_gap"`
	InteractionGap time.Duration `yaml:"interaction_gap"`
}

type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
	// DeliveryCues override the built-in behaviour cue patterns when set.
	DeliveryCues []string `yaml:"delivery_cues"`
	ServiceCues  []string `yaml:"service_cues"`
}

type RetrievalConfig struct {
	MaxEvents    int `yaml:"max_events"`
	MaxEvidence  int `yaml:"max_evidence"`
	MaxSummaries int `yaml:"max_summaries"`
}

type IngestConfig struct {
	VideoBaseDir string `yaml:"video_base_dir"`
	ManifestPath string `yaml:"manifest_path"`
	EnrollDir    string `yaml:"enroll_dir"`
	SnapshotDir  string `yaml:"snapshot_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.SampleFPS == 0 {
		cfg.Vision.SampleFPS = 1
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.MinBBoxSide == 0 {
		cfg.Vision.MinBBoxSide = 50
	}
	if cfg.Tracking.IoUThreshold == 0 {
		cfg.Tracking.IoUThreshold = 0.7
	}
	if cfg.Tracking.RevalidateInterval == 0 {
		cfg.Tracking.RevalidateInterval = 5
	}
	if cfg.Tracking.MaxAge == 0 {
		cfg.Tracking.MaxAge = 3
	}
	if cfg.Identity.FaceThreshold == 0 {
		cfg.Identity.FaceThreshold = 0.65
	}
	if cfg.Identity.BodyThreshold == 0 {
		cfg.Identity.BodyThreshold = 0.60
	}
	if cfg.Identity.SoftBodyThreshold == 0 {
		cfg.Identity.SoftBodyThreshold = 0.55
	}
	if cfg.Identity.BodyCacheWindow == 0 {
		cfg.Identity.BodyCacheWindow = 48 * time.Hour
	}
	if cfg.Fusion.TimeGap == 0 {
		cfg.Fusion.TimeGap = 60 * time.Second
	}
	if cfg.Fusion.StrangerGap == 0 {
		cfg.Fusion.StrangerGap = 10 * time.Second
	}
	if cfg.Fusion.InteractionGap == 0 {
		cfg.Fusion.InteractionGap = 5 * time.Second
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.BackoffBase == 0 {
		cfg.LLM.BackoffBase = 2 * time.Second
	}
	if cfg.LLM.BackoffMax == 0 {
		cfg.LLM.BackoffMax = 10 * time.Second
	}
	if cfg.Retrieval.MaxEvents == 0 {
		cfg.Retrieval.MaxEvents = 50
	}
	if cfg.Retrieval.MaxEvidence == 0 {
		cfg.Retrieval.MaxEvidence = 5
	}
	if cfg.Retrieval.MaxSummaries == 0 {
		cfg.Retrieval.MaxSummaries = 10
	}
	if cfg.Ingest.VideoBaseDir == "" {
		cfg.Ingest.VideoBaseDir = "videos"
	}
	if cfg.Ingest.SnapshotDir == "" {
		cfg.Ingest.SnapshotDir = "snapshots"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HW_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HW_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("HW_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HW_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HW_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HW_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HW_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HW_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HW_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("HW_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("HW_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("HW_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("HW_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("HW_VISION_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
	if v := os.Getenv("HW_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("HW_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("HW_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("HW_VIDEO_BASE_DIR"); v != "" {
		cfg.Ingest.VideoBaseDir = v
	}
	if v := os.Getenv("HW_SNAPSHOT_DIR"); v != "" {
		cfg.Ingest.SnapshotDir = v
	}
}
