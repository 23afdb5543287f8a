package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	OCR        OCRConfig        `yaml:"ocr"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Mode          string `yaml:"mode"`
	WhitelistFile string `yaml:"whitelist_file"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StorageConfig struct {
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	UseSSL         bool   `yaml:"use_ssl"`
	EvidenceBucket string `yaml:"evidence_bucket"`
	PublicEndpoint string `yaml:"public_endpoint"`
}

// AIConfig configures the external text-classification service. An empty
// base URL disables AI classification and the engine runs on keyword
// heuristics alone.
type AIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

type OCRConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MonitoringConfig holds the engine tunables. The classifier thresholds and
// the dedup/cooldown windows are deliberately configuration, not constants.
type MonitoringConfig struct {
	SampleIntervalSeconds    int  `yaml:"sample_interval_seconds"`
	FlushIntervalSeconds     int  `yaml:"flush_interval_seconds"`
	IdleThresholdMinutes     int  `yaml:"idle_threshold_minutes"`
	LowProductivityScore     int  `yaml:"low_productivity_score"`
	PollIntervalSeconds      int  `yaml:"poll_interval_seconds"`
	DetectionCacheTTLMS      int  `yaml:"detection_cache_ttl_ms"`
	DetectionMinDelayMS      int  `yaml:"detection_min_delay_ms"`
	MaxSessionScreenshots    int  `yaml:"max_session_screenshots"`
	SessionCooldownMinutes   int  `yaml:"session_cooldown_minutes"`
	HashLookbackMinutes      int  `yaml:"hash_lookback_minutes"`
	AlertDedupMinutes        int  `yaml:"alert_dedup_minutes"`
	DailyUsageLimitHours     int  `yaml:"daily_usage_limit_hours"`
	ScreenshotQuality        int  `yaml:"screenshot_quality"`
	WorkConfidence           int  `yaml:"work_confidence"`
	NonWorkConfidence        int  `yaml:"non_work_confidence"`
	UncertainConfidence      int  `yaml:"uncertain_confidence"`
	RelevanceCloseThreshold  int  `yaml:"relevance_close_threshold"`
	LegacyEnabled            bool `yaml:"legacy_enabled"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 15
	}
	if cfg.AI.RetryAttempts == 0 {
		cfg.AI.RetryAttempts = 3
	}
	if cfg.OCR.TimeoutSeconds == 0 {
		cfg.OCR.TimeoutSeconds = 30
	}

	m := &cfg.Monitoring
	if m.SampleIntervalSeconds == 0 {
		m.SampleIntervalSeconds = 60
	}
	if m.FlushIntervalSeconds == 0 {
		m.FlushIntervalSeconds = 30
	}
	if m.IdleThresholdMinutes == 0 {
		m.IdleThresholdMinutes = 15
	}
	if m.LowProductivityScore == 0 {
		m.LowProductivityScore = 30
	}
	if m.PollIntervalSeconds == 0 {
		m.PollIntervalSeconds = 6
	}
	if m.DetectionCacheTTLMS == 0 {
		m.DetectionCacheTTLMS = 2000
	}
	if m.DetectionMinDelayMS == 0 {
		m.DetectionMinDelayMS = 1000
	}
	if m.MaxSessionScreenshots == 0 {
		m.MaxSessionScreenshots = 3
	}
	if m.SessionCooldownMinutes == 0 {
		m.SessionCooldownMinutes = 5
	}
	if m.HashLookbackMinutes == 0 {
		m.HashLookbackMinutes = 30
	}
	if m.AlertDedupMinutes == 0 {
		m.AlertDedupMinutes = 5
	}
	if m.DailyUsageLimitHours == 0 {
		m.DailyUsageLimitHours = 2
	}
	if m.ScreenshotQuality == 0 {
		m.ScreenshotQuality = 60
	}
	if m.WorkConfidence == 0 {
		m.WorkConfidence = 70
	}
	if m.NonWorkConfidence == 0 {
		m.NonWorkConfidence = 60
	}
	if m.UncertainConfidence == 0 {
		m.UncertainConfidence = 50
	}
	if m.RelevanceCloseThreshold == 0 {
		m.RelevanceCloseThreshold = 50
	}
}

// Durations derived from the raw config fields.

func (m MonitoringConfig) SampleInterval() time.Duration {
	return time.Duration(m.SampleIntervalSeconds) * time.Second
}

func (m MonitoringConfig) FlushInterval() time.Duration {
	return time.Duration(m.FlushIntervalSeconds) * time.Second
}

func (m MonitoringConfig) IdleThreshold() time.Duration {
	return time.Duration(m.IdleThresholdMinutes) * time.Minute
}

func (m MonitoringConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

func (m MonitoringConfig) DetectionCacheTTL() time.Duration {
	return time.Duration(m.DetectionCacheTTLMS) * time.Millisecond
}

func (m MonitoringConfig) DetectionMinDelay() time.Duration {
	return time.Duration(m.DetectionMinDelayMS) * time.Millisecond
}

func (m MonitoringConfig) SessionCooldown() time.Duration {
	return time.Duration(m.SessionCooldownMinutes) * time.Minute
}

func (m MonitoringConfig) HashLookback() time.Duration {
	return time.Duration(m.HashLookbackMinutes) * time.Minute
}

func (m MonitoringConfig) AlertDedupWindow() time.Duration {
	return time.Duration(m.AlertDedupMinutes) * time.Minute
}

func (m MonitoringConfig) DailyUsageLimit() time.Duration {
	return time.Duration(m.DailyUsageLimitHours) * time.Hour
}
