package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, with a .env file loaded first when present
type Config struct {
	OutputDir string `env:"FRAMECOMPARE_OUTPUT_DIR" envDefault:"Screenshots"`
	MediaRoot string `env:"FRAMECOMPARE_MEDIA_ROOT"`
	LogLevel  string `env:"LOG_LEVEL"               envDefault:"info"`

	FFmpegPath        string `env:"FFMPEG_PATH"          envDefault:"ffmpeg"`
	FFprobeTimeoutS   int    `env:"FFPROBE_TIMEOUT_S"    envDefault:"60"`
	CropDetectSamples int    `env:"CROPDETECT_SAMPLES"   envDefault:"5"`

	SlowpicsBaseURL          string `env:"SLOWPICS_BASE_URL"            envDefault:"https://slow.pics"`
	SlowpicsTimeoutS         int    `env:"SLOWPICS_TIMEOUT_S"           envDefault:"120"`
	SlowpicsUploadDelayMs    int    `env:"SLOWPICS_UPLOAD_DELAY_MS"     envDefault:"500"`
	SlowpicsRetryBaseDelayMs int    `env:"SLOWPICS_RETRY_BASE_DELAY_MS" envDefault:"5000"`
	SlowpicsMaxAttempts      int    `env:"SLOWPICS_MAX_ATTEMPTS"        envDefault:"3"`
	SlowpicsChunkTarget      int    `env:"SLOWPICS_CHUNK_TARGET"        envDefault:"400"`

	HTTPAddr       string `env:"WORKER_HTTP_ADDR"   envDefault:":8081"`
	MetricsAddr    string `env:"METRICS_ADDR"       envDefault:":9091"`
	JaegerEndpoint string `env:"JAEGER_ENDPOINT"`

	DBOSDatabaseURL string `env:"DBOS_SYSTEM_DATABASE_URL"`
	DBOSQueueName   string `env:"DBOS_QUEUE_NAME"          envDefault:"compare-queue"`
	DBOSConcurrency int    `env:"DBOS_QUEUE_CONCURRENCY"   envDefault:"1"`
	LedgerURL       string `env:"LEDGER_DATABASE_URL"`

	ContentStorageDir string `env:"CONTENT_STORAGE_DIR"`

	MinIOEndpoint  string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"`
	MinIOBucket    string `env:"MINIO_BUCKET"     envDefault:"screenshots"`
	MinIOPrefix    string `env:"MINIO_PREFIX"`
}

// Load reads .env (if any) and parses the environment
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Seconds converts a whole-second setting
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts a millisecond setting
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
