// ABOUTME: Entry point for the nanda-ui agent chat server
// ABOUTME: Serves the chat UI, supervises the bridge, and talks to the registry

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/Mag-201/nanda-agent/internal/config"
	"github.com/Mag-201/nanda-agent/internal/gateway"
	"github.com/Mag-201/nanda-agent/internal/identity"
	"github.com/Mag-201/nanda-agent/internal/registry"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                           _                     _
 _ __   __ _ _ __   __| | __ _       _   _ (_)
| '_ \ / _' | '_ \ / _' |/ _' |_____| | | || |
| | | | (_| | | | | (_| | (_| |_____| |_| || |
|_| |_|\__,_|_| |_|\__,_|\__,_|      \__,_||_|
`

// getConfigPath returns the path to the config file.
// Priority: NANDA_CONFIG env var > ./nanda-ui.yaml
func getConfigPath() string {
	if envPath := os.Getenv("NANDA_CONFIG"); envPath != "" {
		return envPath
	}
	return "nanda-ui.yaml"
}

// loadConfig reads the YAML config when present and falls back to
// environment variables, matching env-only deployments driven by .env files.
func loadConfig() (*config.Config, string, error) {
	config.LoadEnvFileCandidates()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err := config.Load(configPath)
		return cfg, configPath, err
	}

	cfg, err := config.FromEnv()
	return cfg, "(environment)", err
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: nanda-ui <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve               Start the agent UI server")
		fmt.Println("  init                Create a new config file interactively")
		fmt.Println("  ids                 Print generated agent IDs for this registry")
		fmt.Println("  register            Register this agent with the registry")
		fmt.Println("  health              Check UI server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "ids":
		err = runIDs()
	case "register":
		err = runRegister(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	registryURL := registry.ResolveURL(cfg.Registry.URL, cfg.Registry.URLFile, config.DefaultRegistryURL)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Agent:     %s\n", cfg.Agent.ID)
	green.Print("    ▶ ")
	fmt.Printf("UI:        %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Bridge:    %s\n", cfg.Bridge.URL)
	green.Print("    ▶ ")
	fmt.Printf("Registry:  %s\n", registryURL)
	fmt.Println()

	logger.Info("starting nanda-ui",
		"agent_id", cfg.Agent.ID,
		"ui_addr", cfg.Server.Addr,
		"bridge_url", cfg.Bridge.URL,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runIDs() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registryURL := registry.ResolveURL(cfg.Registry.URL, cfg.Registry.URLFile, config.DefaultRegistryURL)
	for _, id := range identity.GenerateIDs(cfg.Agent.IDPrefix, registryURL, cfg.Agent.NumAgents) {
		fmt.Println(id)
	}
	return nil
}

func runRegister(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Agent.PublicURL == "" {
		return fmt.Errorf("agent.public_url is required to register (set PUBLIC_URL)")
	}

	registryURL := registry.ResolveURL(cfg.Registry.URL, cfg.Registry.URLFile, config.DefaultRegistryURL)
	client := registry.NewClient(registryURL, registry.Options{
		Attempts:           cfg.Registry.Attempts,
		InsecureSkipVerify: cfg.Registry.InsecureSkipVerify,
		Logger:             setupLogger(cfg.Logging),
	})

	if err := client.Register(ctx, cfg.Agent.ID, cfg.Agent.PublicURL); err != nil {
		return err
	}

	fmt.Printf("registered %s at %s\n", cfg.Agent.ID, registryURL)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.Addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("nanda-ui configuration setup")
	fmt.Println("============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", getConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Agent Configuration ---")
	agentID := prompt(reader, "Agent ID", "agents1")
	publicURL := prompt(reader, "Public URL (how peers reach the bridge)", "")

	fmt.Println("\n--- Server Configuration ---")
	uiAddr := prompt(reader, "UI address", "0.0.0.0:5000")
	bridgePort := prompt(reader, "Bridge port", "6000")

	fmt.Println("\n--- Registry Configuration ---")
	registryURL := prompt(reader, "Registry URL (empty for registry_url.txt or default)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# nanda-ui configuration\n")
	cfg.WriteString("# Generated by nanda-ui init\n\n")

	cfg.WriteString("agent:\n")
	cfg.WriteString(fmt.Sprintf("  id: \"%s\"\n", agentID))
	if publicURL != "" {
		cfg.WriteString(fmt.Sprintf("  public_url: \"%s\"\n", publicURL))
	}
	cfg.WriteString("\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  addr: \"%s\"\n", uiAddr))
	cfg.WriteString("\n")

	cfg.WriteString("bridge:\n")
	if _, err := strconv.Atoi(bridgePort); err != nil {
		return fmt.Errorf("bridge port must be a number, got %q", bridgePort)
	}
	cfg.WriteString(fmt.Sprintf("  port: %s\n", bridgePort))
	cfg.WriteString("  timeout: \"60s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("registry:\n")
	if registryURL != "" {
		cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", registryURL))
	}
	cfg.WriteString("  url_file: \"registry_url.txt\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString("  path: \"nanda-ui.db\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  nanda-ui serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
