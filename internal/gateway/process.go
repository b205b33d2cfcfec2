// ABOUTME: Supervises the bridge child process that speaks the agent protocol
// ABOUTME: Starts it with the agent's environment, captures its logs, and stops it on shutdown

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Mag-201/nanda-agent/internal/config"
	"github.com/Mag-201/nanda-agent/internal/registry"
)

// stopGrace is how long the bridge gets to exit after SIGTERM before it is
// killed.
const stopGrace = 5 * time.Second

// BridgeProcess runs the bridge as a child process.
type BridgeProcess struct {
	cfg    *config.Config
	logger *slog.Logger

	cmd     *exec.Cmd
	logFile *os.File
	done    chan struct{}
}

// NewBridgeProcess prepares a bridge supervisor from configuration.
func NewBridgeProcess(cfg *config.Config, logger *slog.Logger) *BridgeProcess {
	if logger == nil {
		logger = slog.Default()
	}
	return &BridgeProcess{
		cfg:    cfg,
		logger: logger.With("component", "bridge-process"),
	}
}

// apiURL is the base URL under which the UI API is reachable. The configured
// agent API URL wins; otherwise it is derived from the listen address and the
// TLS configuration.
func (p *BridgeProcess) apiURL() string {
	if p.cfg.Agent.APIURL != "" {
		return strings.TrimRight(p.cfg.Agent.APIURL, "/")
	}
	scheme := "http"
	if p.cfg.SSL.CertFile != "" {
		scheme = "https"
	}
	return scheme + "://" + p.cfg.Server.Addr
}

// bridgeEnv is the environment handed to the bridge child process.
// UI_CLIENT_URL points at the inbound delivery endpoint, which is where the
// bridge POSTs messages arriving from peers.
func (p *BridgeProcess) bridgeEnv() []string {
	apiURL := p.apiURL()
	registryURL := registry.ResolveURL(p.cfg.Registry.URL, p.cfg.Registry.URLFile, config.DefaultRegistryURL)
	return []string{
		"AGENT_ID=" + p.cfg.Agent.ID,
		"PORT=" + strconv.Itoa(p.cfg.Bridge.Port),
		"PUBLIC_URL=" + p.cfg.Agent.PublicURL,
		"API_URL=" + apiURL,
		"REGISTRY_URL=" + registryURL,
		"UI_MODE=true",
		"UI_CLIENT_URL=" + apiURL + "/api/receive_message",
	}
}

// Start launches the bridge and waits out the startup grace period so the
// bridge port is accepting connections before the UI goes live.
func (p *BridgeProcess) Start(ctx context.Context) error {
	parts := p.cfg.Bridge.Command
	if len(parts) == 0 {
		return fmt.Errorf("empty bridge command")
	}

	logDir := p.cfg.Bridge.LogDir
	if logDir == "" {
		logDir = "logs_" + p.cfg.Agent.ID
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "bridge_run.txt")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening bridge log: %w", err)
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), p.bridgeEnv()...)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("starting bridge %q: %w", parts[0], err)
	}

	p.cmd = cmd
	p.logFile = logFile
	p.done = make(chan struct{})
	p.logger.Info("bridge process started", "pid", cmd.Process.Pid, "log", logPath)

	go func() {
		defer close(p.done)
		if err := cmd.Wait(); err != nil {
			p.logger.Warn("bridge process exited", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	case <-p.done:
		return fmt.Errorf("bridge process exited during startup, see %s", logPath)
	case <-time.After(p.cfg.Bridge.StartupGrace):
		return nil
	}
}

// Stop terminates the bridge, escalating from SIGTERM to SIGKILL.
func (p *BridgeProcess) Stop() {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	defer func() {
		if p.logFile != nil {
			p.logFile.Close()
		}
		p.cmd = nil
	}()

	select {
	case <-p.done:
		return
	default:
	}

	p.logger.Info("stopping bridge process", "pid", p.cmd.Process.Pid)
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return
	}

	select {
	case <-p.done:
	case <-time.After(stopGrace):
		p.logger.Warn("bridge process did not exit, killing", "pid", p.cmd.Process.Pid)
		p.cmd.Process.Kill()
		<-p.done
	}
}
