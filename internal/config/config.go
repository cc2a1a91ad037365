package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	DSN       string          `yaml:"dsn" env:"DSN" env-required:"true"`
	HTTP      HTTPConfig      `yaml:"http"`
	Blob      BlobConfig      `yaml:"blob"`
	Redis     RedisConfig     `yaml:"redis"`
	Instagram InstagramConfig `yaml:"instagram"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
}

type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

// BlobConfig selects the image storage backends. Drafts need a backend that
// can read images back (minio or local); the publish uploader may instead use
// the anonymous tmpfiles fallback when no bucket is configured.
type BlobConfig struct {
	Backend        string        `yaml:"backend" env:"BLOB_BACKEND" env-default:"local"` // minio | local
	PublishThrough string        `yaml:"publish_through" env:"BLOB_PUBLISH_THROUGH" env-default:"tmpfiles"` // minio | tmpfiles
	Endpoint       string        `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey      string        `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey      string        `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket         string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"instagrid"`
	UseSSL         bool          `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	URLExpiry      time.Duration `yaml:"url_expiry" env:"BLOB_URL_EXPIRY" env-default:"1h"`
	LocalDir       string        `yaml:"local_dir" env:"BLOB_LOCAL_DIR" env-default:"data/drafts/images"`
	LocalBaseURL   string        `yaml:"local_base_url" env:"BLOB_LOCAL_BASE_URL" env-default:"http://localhost:8080/api/v1/drafts/image"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type InstagramConfig struct {
	GraphAPIURL  string        `yaml:"graph_api_url" env:"IG_GRAPH_API_URL" env-default:"https://graph.facebook.com/v19.0"`
	UserID       string        `yaml:"user_id" env:"IG_USER_ID"`
	AccessToken  string        `yaml:"access_token" env:"IG_ACCESS_TOKEN"`
	PollInterval time.Duration `yaml:"poll_interval" env:"IG_POLL_INTERVAL" env-default:"2s"`
	PollTimeout  time.Duration `yaml:"poll_timeout" env:"IG_POLL_TIMEOUT" env-default:"60s"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" env:"IG_HTTP_TIMEOUT" env-default:"15s"`
}

type AnalysisConfig struct {
	BaseURL string `yaml:"base_url" env:"ANALYSIS_BASE_URL" env-default:"https://api.openai.com/v1"`
	APIKey  string `yaml:"api_key" env:"ANALYSIS_API_KEY"`
	Model   string `yaml:"model" env:"ANALYSIS_MODEL" env-default:"gpt-4o-mini"`
}

func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(configPath string) *Config {
	// .env is optional, real env always wins
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	// --config="path/to/config.yaml"
	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
