package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from enel.toml.
// API credentials come from the environment (optionally via a .env file)
// and are resolved into the relevant sections by Load.
type Config struct {
	Account   AccountConfig   `toml:"account"`
	Ingest    IngestConfig    `toml:"ingest"`
	LLM       LLMConfig       `toml:"llm"`
	ASR       ASRConfig       `toml:"asr"`
	Vector    VectorConfig    `toml:"vector"`
	Outbox    OutboxConfig    `toml:"outbox"`
	Jobs      JobsConfig      `toml:"jobs"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

// AccountConfig identifies the single account this process serves.
type AccountConfig struct {
	Name    string `toml:"name"`
	DataDir string `toml:"data_dir"`
}

// IngestConfig controls the incoming message pipeline.
type IngestConfig struct {
	BaseFolder          string `toml:"base_folder"`
	IgnoreShortMessages bool   `toml:"ignore_short_messages"`
	MinBodyLength       int    `toml:"min_body_length"`
	GenerateReplies     bool   `toml:"generate_replies"`
	QueueSize           int    `toml:"queue_size"`
}

// LLMConfig selects and tunes the reply-drafting backend.
type LLMConfig struct {
	Engine         string `toml:"engine"` // "local" or "gemini"
	Model          string `toml:"model"`
	LocalURL       string `toml:"local_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Persona        string `toml:"persona"`
	HistoryLimit   int    `toml:"history_limit"`
	RecallK        int    `toml:"recall_k"`
	GeminiAPIKey   string `toml:"-"`
}

// ASRConfig selects and tunes the speech-to-text engine.
type ASRConfig struct {
	Engine         string  `toml:"engine"` // "local" or "openai"
	WhisperModel   string  `toml:"whisper_model"`
	Language       string  `toml:"language"`
	Threshold      float64 `toml:"threshold"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	OpenAIAPIKey   string  `toml:"-"`
}

// VectorConfig points at the vector store collaborator.
type VectorConfig struct {
	ChromaURL  string `toml:"chroma_url"`
	Collection string `toml:"collection"`
	Dimensions int    `toml:"dimensions"`
}

// OutboxConfig controls the delivery sweep.
type OutboxConfig struct {
	ApprovalRequired     bool `toml:"approval_required"`
	ManualBypassApproval bool `toml:"manual_bypass_approval"`
	SweepIntervalSeconds int  `toml:"sweep_interval_seconds"`
	BatchLimit           int  `toml:"batch_limit"`
}

// JobsConfig holds cron expressions and bounds for the batch jobs.
// An empty cron expression disables that job's schedule.
type JobsConfig struct {
	AssistantCron         string `toml:"assistant_cron"`
	FollowUpCron          string `toml:"follow_up_cron"`
	VectorCron            string `toml:"vector_cron"`
	ProfileCron           string `toml:"profile_cron"`
	AssistantLookbackDays int    `toml:"assistant_lookback_days"`
	AssistantBatchLimit   int    `toml:"assistant_batch_limit"`
	VectorBatchSize       int    `toml:"vector_batch_size"`
	FollowUpQuestionDays  int    `toml:"follow_up_question_days"`
	FollowUpStaleDays     int    `toml:"follow_up_stale_days"`
	ProfileHistoryLimit   int    `toml:"profile_history_limit"`
}

// DashboardConfig controls the thin HTTP surface.
type DashboardConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Name:    "default",
			DataDir: defaultDataDir(),
		},
		Ingest: IngestConfig{
			BaseFolder:          "data",
			IgnoreShortMessages: true,
			MinBodyLength:       2,
			GenerateReplies:     true,
			QueueSize:           256,
		},
		LLM: LLMConfig{
			Engine:         "local",
			Model:          "llama3",
			LocalURL:       "http://localhost:11434",
			TimeoutSeconds: 60,
			Persona:        "You are a helpful assistant replying on my behalf.",
			HistoryLimit:   10,
			RecallK:        5,
		},
		ASR: ASRConfig{
			Engine:         "local",
			WhisperModel:   "base",
			Threshold:      0.5,
			TimeoutSeconds: 300,
		},
		Vector: VectorConfig{
			ChromaURL:  "http://localhost:8000",
			Collection: "messages",
			Dimensions: 128,
		},
		Outbox: OutboxConfig{
			ApprovalRequired:     true,
			ManualBypassApproval: true,
			SweepIntervalSeconds: 30,
			BatchLimit:           20,
		},
		Jobs: JobsConfig{
			AssistantCron:         "*/10 * * * *",
			FollowUpCron:          "0 8 * * *",
			VectorCron:            "*/30 * * * *",
			ProfileCron:           "0 4 * * 0",
			AssistantLookbackDays: 2,
			AssistantBatchLimit:   20,
			VectorBatchSize:       100,
			FollowUpQuestionDays:  2,
			FollowUpStaleDays:     30,
			ProfileHistoryLimit:   50,
		},
		Dashboard: DashboardConfig{
			ListenAddr: "127.0.0.1:3000",
		},
	}
}

// Load reads config from path, layering it over the defaults. A missing file
// is not an error: the defaults are returned so a bare checkout still runs.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.LLM.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.ASR.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime behavior.
func (c *Config) Validate() error {
	switch c.LLM.Engine {
	case "local", "gemini":
	default:
		return fmt.Errorf("llm.engine must be \"local\" or \"gemini\", got %q", c.LLM.Engine)
	}
	switch c.ASR.Engine {
	case "local", "openai":
	default:
		return fmt.Errorf("asr.engine must be \"local\" or \"openai\", got %q", c.ASR.Engine)
	}
	if c.ASR.Threshold < 0 || c.ASR.Threshold > 1 {
		return fmt.Errorf("asr.threshold must be within [0,1], got %v", c.ASR.Threshold)
	}
	if c.LLM.HistoryLimit <= 0 {
		return fmt.Errorf("llm.history_limit must be positive")
	}
	if c.Jobs.VectorBatchSize <= 0 {
		return fmt.Errorf("jobs.vector_batch_size must be positive")
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest.queue_size must be positive")
	}
	return nil
}

// DBPath returns the sqlite database path for the account.
func (c *Config) DBPath() string {
	return filepath.Join(c.Account.DataDir, c.Account.Name, "enel.db")
}

// SessionDBPath returns the whatsmeow credential store path.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Account.DataDir, c.Account.Name, "session.db")
}

// LogPath returns the daemon log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Account.DataDir, c.Account.Name, "eneld.log")
}

// AccountDir returns the per-account state directory.
func (c *Config) AccountDir() string {
	return filepath.Join(c.Account.DataDir, c.Account.Name)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".enel"
	}
	return filepath.Join(home, ".enel")
}
