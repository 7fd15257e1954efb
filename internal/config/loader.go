package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service. Default() fills every field;
// a config file only needs to name what it changes.
type Config struct {
	Addr         string         `json:"addr" yaml:"addr" toml:"addr"`
	DataDir      string         `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	DatabasePath string         `json:"database_path" yaml:"database_path" toml:"database_path"`
	LogLevel     string         `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxUploadMB  int            `json:"max_upload_mb" yaml:"max_upload_mb" toml:"max_upload_mb"`
	Auth         AuthConfig     `json:"auth" yaml:"auth" toml:"auth"`
	CORS         CORSConfig     `json:"cors" yaml:"cors" toml:"cors"`
	Storage      StorageConfig  `json:"storage" yaml:"storage" toml:"storage"`
	OCR          OCRConfig      `json:"ocr" yaml:"ocr" toml:"ocr"`
	Models       ModelsConfig   `json:"models" yaml:"models" toml:"models"`
	Pipeline     PipelineConfig `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
}

type AuthConfig struct {
	SecretKey       string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	TokenTTLMinutes int    `json:"token_ttl_minutes" yaml:"token_ttl_minutes" toml:"token_ttl_minutes"`
}

type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// StorageConfig selects the blob backend: "local" (Dir) or "s3".
type StorageConfig struct {
	Backend string   `json:"backend" yaml:"backend" toml:"backend"`
	Dir     string   `json:"dir" yaml:"dir" toml:"dir"`
	S3      S3Config `json:"s3" yaml:"s3" toml:"s3"`
}

type S3Config struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Region       string `json:"region" yaml:"region" toml:"region"`
	Bucket       string `json:"bucket" yaml:"bucket" toml:"bucket"`
	AccessKey    string `json:"access_key" yaml:"access_key" toml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key" toml:"secret_key"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style" toml:"use_path_style"`
}

type OCRConfig struct {
	URL            string `json:"url" yaml:"url" toml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// ModelsConfig maps each model kind to its weights variants and controls how
// the registry keeps them resident.
type ModelsConfig struct {
	Dir               string            `json:"dir" yaml:"dir" toml:"dir"`
	Device            string            `json:"device" yaml:"device" toml:"device"`
	BatchSize         int               `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	AllowCoresidency  bool              `json:"allow_coresidency" yaml:"allow_coresidency" toml:"allow_coresidency"`
	BudgetMB          int               `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	MarginMB          int               `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`
	LoadTimeoutSecs   int               `json:"load_timeout_seconds" yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	MaxQueueDepth     int               `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSecs       int               `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	DefaultASR        string            `json:"default_asr" yaml:"default_asr" toml:"default_asr"`
	DefaultLLM        string            `json:"default_llm" yaml:"default_llm" toml:"default_llm"`
	DefaultClassifier string            `json:"default_classifier" yaml:"default_classifier" toml:"default_classifier"`
	ASR               map[string]string `json:"asr" yaml:"asr" toml:"asr"`
	LLM               map[string]string `json:"llm" yaml:"llm" toml:"llm"`
	Classifier        map[string]string `json:"classifier" yaml:"classifier" toml:"classifier"`
	Runtime           RuntimeConfig     `json:"runtime" yaml:"runtime" toml:"runtime"`
}

// RuntimeConfig configures the model server processes.
type RuntimeConfig struct {
	WhisperBin      string   `json:"whisper_bin" yaml:"whisper_bin" toml:"whisper_bin"`
	LlamaBin        string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	ClassifierBin   string   `json:"classifier_bin" yaml:"classifier_bin" toml:"classifier_bin"`
	Host            string   `json:"host" yaml:"host" toml:"host"`
	PortStart       int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd         int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ReadyTimeoutSec int      `json:"ready_timeout_seconds" yaml:"ready_timeout_seconds" toml:"ready_timeout_seconds"`
	LlamaInProcess  bool     `json:"llama_in_process" yaml:"llama_in_process" toml:"llama_in_process"`
	LlamaCtx        int      `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads    int      `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	ExtraArgs       []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`
}

type PipelineConfig struct {
	Workers            int      `json:"workers" yaml:"workers" toml:"workers"`
	ExtractConcurrency int      `json:"extract_concurrency" yaml:"extract_concurrency" toml:"extract_concurrency"`
	FFmpegBin          string   `json:"ffmpeg_bin" yaml:"ffmpeg_bin" toml:"ffmpeg_bin"`
	Subjects           []string `json:"subjects" yaml:"subjects" toml:"subjects"`
	ArtifactCacheTTL   int      `json:"artifact_cache_ttl_seconds" yaml:"artifact_cache_ttl_seconds" toml:"artifact_cache_ttl_seconds"`
	SummaryTokenBudget int      `json:"summary_token_budget" yaml:"summary_token_budget" toml:"summary_token_budget"`
}

// Default returns the configuration used when no file is given. Model paths
// follow the container layout the service ships with.
func Default() Config {
	return Config{
		Addr:        ":8000",
		DataDir:     "~/.iorganise",
		LogLevel:    "info",
		MaxUploadMB: 512,
		Auth:        AuthConfig{TokenTTLMinutes: 60},
		CORS: CORSConfig{
			Enabled: true,
			Origins: []string{"http://localhost:3000"},
			Methods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			Headers: []string{"Authorization", "Content-Type", "X-Log-Level"},
		},
		Storage: StorageConfig{Backend: "local", S3: S3Config{Region: "us-east-1"}},
		OCR:     OCRConfig{URL: "http://ocr:8001", TimeoutSeconds: 60},
		Models: ModelsConfig{
			Device:            "auto",
			BatchSize:         16,
			LoadTimeoutSecs:   300,
			MaxQueueDepth:     32,
			MaxWaitSecs:       600,
			DefaultASR:        "small_sg",
			DefaultLLM:        "mistral_7b",
			DefaultClassifier: "distilbert_subject",
			ASR: map[string]string{
				"small":    "/app/models/faster-whisper-small",
				"small_sg": "/app/models/faster-whisper-small-sg",
				"medium":   "/app/models/faster-whisper-medium",
			},
			LLM: map[string]string{
				"mistral_7b":  "/app/models/mistral_7b/model.bin",
				"llama_8b":    "/app/models/llama_8b/model.bin",
				"mistral_22b": "/app/models/mistral_22b/model.bin",
			},
			Classifier: map[string]string{
				"distilbert_subject": "/app/models/DistilBERTSubjectClassification",
			},
			Runtime: RuntimeConfig{
				WhisperBin:      "whisper-server",
				LlamaBin:        "llama-server",
				ClassifierBin:   "subject-classifier-server",
				Host:            "127.0.0.1",
				ReadyTimeoutSec: 120,
				LlamaCtx:        8192,
			},
		},
		Pipeline: PipelineConfig{
			Workers:            2,
			ExtractConcurrency: 4,
			FFmpegBin:          "ffmpeg",
			ArtifactCacheTTL:   600,
			SummaryTokenBudget: 6000,
		},
	}
}

// Load reads a configuration file based on its extension and layers it over
// Default(). Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from IORGANISE_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv("IORGANISE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("IORGANISE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("IORGANISE_SECRET_KEY"); v != "" {
		c.Auth.SecretKey = v
	}
	if v := getenv("IORGANISE_OCR_URL"); v != "" {
		c.OCR.URL = v
	}
	if v := getenv("IORGANISE_DEVICE"); v != "" {
		c.Models.Device = v
	}
	if v := getenv("IORGANISE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("IORGANISE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
}

// Validate reports configuration errors that would only surface later at
// request time.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		return fmt.Errorf("auth.secret_key is required (or set IORGANISE_SECRET_KEY)")
	}
	switch c.Storage.Backend {
	case "", "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	switch strings.ToLower(c.Models.Device) {
	case "", "auto", "cpu", "gpu", "cuda":
	default:
		return fmt.Errorf("unsupported device: %s", c.Models.Device)
	}
	if c.Models.Runtime.PortEnd > 0 && c.Models.Runtime.PortEnd < c.Models.Runtime.PortStart {
		return fmt.Errorf("models.runtime.port_end must be >= port_start")
	}
	return nil
}

// Seconds converts an integer seconds field to a Duration, using def when the
// field is not positive.
func Seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
