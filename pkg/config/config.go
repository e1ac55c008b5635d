package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server        ServerConfig
	Pipeline      PipelineConfig
	Cache         CacheConfig
	Transcription TranscriptionConfig
	Jobs          JobsConfig
	YTDLPPath     string
	LogLevel      slog.Level
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PipelineConfig struct {
	LongFormThreshold time.Duration
	SegmentDuration   time.Duration
	ParagraphGap      time.Duration
	WorkDir           string
	RequestTimeout    time.Duration
}

type CacheConfig struct {
	Backend         string
	Dir             string
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

type TranscriptionConfig struct {
	Backend        string
	DeepgramAPIKey string
	DeepgramModel  string
	OpenAIAPIKey   string
	WhisperModel   string
	Language       string
	DetectLanguage bool
}

type JobsConfig struct {
	Workers   int
	QueueSize int
}

// Load reads configuration from the environment, after loading .env from
// the working directory if one exists.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	detect := envBool("DETECT_LANGUAGE", false)
	language := os.Getenv("TRANSCRIPT_LANGUAGE")
	if language == "" && !detect {
		language = "en"
	}

	return &Config{
		Server: ServerConfig{
			Address:      envString("SERVER_ADDRESS", ":8080"),
			ReadTimeout:  envDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: envDuration("SERVER_WRITE_TIMEOUT", 2*time.Hour),
		},
		Pipeline: PipelineConfig{
			LongFormThreshold: envDuration("LONG_FORM_THRESHOLD", 600*time.Second),
			SegmentDuration:   envDuration("SEGMENT_DURATION", 540*time.Second),
			ParagraphGap:      envDuration("PARAGRAPH_GAP", 30*time.Second),
			WorkDir:           envString("WORK_DIR", os.TempDir()),
			RequestTimeout:    envDuration("REQUEST_TIMEOUT", 2*time.Hour),
		},
		Cache: CacheConfig{
			Backend:         envString("CACHE_BACKEND", "file"),
			Dir:             envString("CACHE_DIR", "./downloads"),
			MaxAge:          envDuration("CACHE_MAX_AGE", 168*time.Hour),
			CleanupInterval: envDuration("CLEANUP_INTERVAL", 0),
		},
		Transcription: TranscriptionConfig{
			Backend:        envString("TRANSCRIPTION_BACKEND", "deepgram"),
			DeepgramAPIKey: os.Getenv("DEEPGRAM_API_KEY"),
			DeepgramModel:  envString("DEEPGRAM_MODEL", "nova-2"),
			OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
			WhisperModel:   envString("WHISPER_MODEL", "whisper-1"),
			Language:       language,
			DetectLanguage: detect,
		},
		Jobs: JobsConfig{
			Workers:   envInt("JOB_WORKERS", 2),
			QueueSize: envInt("JOB_QUEUE_SIZE", 64),
		},
		YTDLPPath: envString("YTDLP_PATH", "yt-dlp"),
		LogLevel:  envLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.SegmentDuration <= 0 {
		errs = append(errs, fmt.Errorf("SEGMENT_DURATION must be positive"))
	}
	if c.Pipeline.LongFormThreshold < 0 {
		errs = append(errs, fmt.Errorf("LONG_FORM_THRESHOLD must not be negative"))
	}
	switch c.Cache.Backend {
	case "file", "badger", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}
	switch c.Transcription.Backend {
	case "deepgram":
		if c.Transcription.DeepgramAPIKey == "" {
			errs = append(errs, fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram backend"))
		}
	case "whisper":
		if c.Transcription.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required for the whisper backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIPTION_BACKEND %q", c.Transcription.Backend))
	}
	if c.Transcription.DetectLanguage && c.Transcription.Language != "" {
		errs = append(errs, fmt.Errorf("TRANSCRIPT_LANGUAGE and DETECT_LANGUAGE cannot both be set"))
	}
	if c.Jobs.Workers <= 0 || c.Jobs.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("JOB_WORKERS and JOB_QUEUE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed integer", "key", key, "value", v)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring malformed boolean", "key", key, "value", v)
		return def
	}
	return b
}

// envDuration accepts Go durations ("9m", "168h") or bare seconds ("540").
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	slog.Warn("ignoring malformed duration", "key", key, "value", v)
	return def
}

func envLevel(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return lvl
}
