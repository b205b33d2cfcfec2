// ABOUTME: Tests for the bridge child process supervisor
// ABOUTME: Uses short-lived shell commands to exercise startup and shutdown

package gateway

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mag-201/nanda-agent/internal/config"
)

func newProcessConfig(t *testing.T, command []string, grace time.Duration) *config.Config {
	t.Helper()
	return &config.Config{
		Agent: config.AgentConfig{ID: "agents1", PublicURL: "http://agent.example:6000"},
		Bridge: config.BridgeConfig{
			Command:      command,
			Port:         6000,
			LogDir:       filepath.Join(t.TempDir(), "logs"),
			StartupGrace: grace,
		},
		Server: config.ServerConfig{Addr: "127.0.0.1:5000"},
	}
}

func TestBridgeProcess_StartAndStop(t *testing.T) {
	cfg := newProcessConfig(t, []string{"sleep", "30"}, 50*time.Millisecond)
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))

	require.NoError(t, p.Start(context.Background()))
	p.Stop()

	// The log file is created even when the bridge writes nothing.
	_, err := os.Stat(filepath.Join(cfg.Bridge.LogDir, "bridge_run.txt"))
	assert.NoError(t, err)
}

func TestBridgeProcess_ExitDuringStartup(t *testing.T) {
	cfg := newProcessConfig(t, []string{"true"}, 2*time.Second)
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))

	err := p.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited during startup")
}

func TestBridgeProcess_EmptyCommand(t *testing.T) {
	cfg := newProcessConfig(t, nil, time.Millisecond)
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, p.Start(context.Background()))
}

func TestBridgeProcess_StopWithoutStart(t *testing.T) {
	cfg := newProcessConfig(t, []string{"sleep", "1"}, time.Millisecond)
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))
	p.Stop()
}

func TestBridgeEnv_PointsAtDeliveryEndpoint(t *testing.T) {
	cfg := newProcessConfig(t, []string{"sleep", "1"}, time.Millisecond)
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))

	env := p.bridgeEnv()
	assert.Contains(t, env, "AGENT_ID=agents1")
	assert.Contains(t, env, "PORT=6000")
	assert.Contains(t, env, "PUBLIC_URL=http://agent.example:6000")
	assert.Contains(t, env, "UI_MODE=true")
	assert.Contains(t, env, "API_URL=http://127.0.0.1:5000")
	assert.Contains(t, env, "UI_CLIENT_URL=http://127.0.0.1:5000/api/receive_message")
}

func TestBridgeEnv_APIURLOverrides(t *testing.T) {
	cfg := newProcessConfig(t, []string{"sleep", "1"}, time.Millisecond)
	cfg.Agent.APIURL = "https://agent.example:5001/"
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))

	env := p.bridgeEnv()
	assert.Contains(t, env, "API_URL=https://agent.example:5001")
	assert.Contains(t, env, "UI_CLIENT_URL=https://agent.example:5001/api/receive_message")
}

func TestAPIURL_UsesHTTPSWhenTLSConfigured(t *testing.T) {
	cfg := newProcessConfig(t, []string{"sleep", "1"}, time.Millisecond)
	cfg.SSL.CertFile = "/etc/ssl/agent.pem"
	p := NewBridgeProcess(cfg, slog.New(slog.DiscardHandler))

	assert.Equal(t, "https://127.0.0.1:5000", p.apiURL())
}
