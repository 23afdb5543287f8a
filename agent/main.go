// The endpoint agent runs on the monitored workstation. It reports input
// counters (keystroke counts and mouse activity, never key content) and
// active-window changes to the monitoring server, which makes all policy
// decisions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/httpclient"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/monitoring"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to config file")
	version    = "1.0.0"
)

// AgentConfig is the workstation-side configuration.
type AgentConfig struct {
	ServerURL             string `yaml:"server_url"`
	APIKey                string `yaml:"api_key"`
	EmployeeID            string `yaml:"employee_id"`
	Mode                  string `yaml:"mode"`
	InputReportSeconds    int    `yaml:"input_report_seconds"`
	WindowPollSeconds     int    `yaml:"window_poll_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

func loadAgentConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required")
	}
	if cfg.EmployeeID == "" {
		cfg.EmployeeID = os.Getenv("USERNAME")
	}
	if cfg.EmployeeID == "" {
		cfg.EmployeeID = os.Getenv("USER")
	}
	if cfg.InputReportSeconds == 0 {
		cfg.InputReportSeconds = 30
	}
	if cfg.WindowPollSeconds == 0 {
		cfg.WindowPollSeconds = 6
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 10
	}
	return &cfg, nil
}

func main() {
	flag.Parse()

	cfg, err := loadAgentConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(zapctx.WithLogger(context.Background(), logger))
	defer cancel()

	logger.Info("Monitoring agent starting",
		zap.String("version", version),
		zap.String("employee_id", cfg.EmployeeID),
		zap.String("server", cfg.ServerURL),
	)

	client := httpclient.NewClient(httpclient.Config{
		BaseURL:        cfg.ServerURL,
		APIKey:         cfg.APIKey,
		TimeoutSeconds: cfg.RequestTimeoutSeconds,
	})

	if err := client.Ping(ctx); err != nil {
		logger.Warn("Server not reachable yet, continuing", zap.Error(err))
	}

	sessionID := uuid.NewString()
	a := &agent{
		cfg:       cfg,
		client:    client,
		sessionID: sessionID,
		backend:   monitoring.NewBackend(),
		input:     newInputSampler(),
		stopChan:  make(chan struct{}),
	}

	if err := a.startSession(ctx); err != nil {
		logger.Warn("Failed to register monitoring session", zap.Error(err))
	}
	if err := a.input.Start(ctx); err != nil {
		logger.Warn("Input sampling unavailable", zap.Error(err))
	}

	go a.reportInputLoop(ctx)
	go a.reportWindowLoop(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")
	close(a.stopChan)
	a.input.Stop()
	a.stopSession(ctx)
	cancel()
}

type agent struct {
	cfg       *AgentConfig
	client    *httpclient.Client
	sessionID string
	backend   monitoring.Backend
	input     inputSampler

	lastIdentity string
	stopChan     chan struct{}
}

func (a *agent) startSession(ctx context.Context) error {
	return a.client.PostJSON(ctx, "/api/monitoring/start", map[string]interface{}{
		"employee_id": a.cfg.EmployeeID,
		"session_id":  a.sessionID,
		"mode":        a.cfg.Mode,
	})
}

func (a *agent) stopSession(ctx context.Context) {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.client.PostJSON(stopCtx, "/api/monitoring/stop", map[string]interface{}{
		"employee_id": a.cfg.EmployeeID,
	}); err != nil {
		zapctx.Warn(ctx, "Failed to close monitoring session", zap.Error(err))
	}
}

func (a *agent) reportInputLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.cfg.InputReportSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			keystrokes, mouseScore := a.input.Snapshot()
			if keystrokes == 0 && mouseScore == 0 {
				continue
			}
			err := a.client.PostJSON(ctx, "/api/activity", map[string]interface{}{
				"employee_id":          a.cfg.EmployeeID,
				"keystrokes":           keystrokes,
				"mouse_activity_score": mouseScore,
			})
			if err != nil {
				zapctx.Warn(ctx, "Failed to report input activity", zap.Error(err))
			}
		}
	}
}

func (a *agent) reportWindowLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(a.cfg.WindowPollSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.reportWindow(ctx)
		}
	}
}

// reportWindow sends the active-window identity when it changes. The agent
// normalizes locally so the server sees the same identity shape regardless
// of which side detected the window.
func (a *agent) reportWindow(ctx context.Context) {
	info, err := a.backend.ActiveWindow(ctx)
	if err != nil || info == nil {
		return
	}

	identity := monitoring.NormalizeWindow(info)
	if identity.Key() == a.lastIdentity {
		return
	}
	a.lastIdentity = identity.Key()

	err = a.client.PostJSON(ctx, "/api/application", map[string]interface{}{
		"employee_id": a.cfg.EmployeeID,
		"name":        identity.Application,
		"url":         identity.URL,
		"title":       identity.Title,
	})
	if err != nil {
		zapctx.Warn(ctx, "Failed to report window change", zap.Error(err))
	}
}
