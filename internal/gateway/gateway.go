// ABOUTME: Core gateway serving the chat UI and its JSON API
// ABOUTME: Wires the bridge client, registry, services, store, and event stream together

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Mag-201/nanda-agent/internal/anthropic"
	"github.com/Mag-201/nanda-agent/internal/bridge"
	"github.com/Mag-201/nanda-agent/internal/config"
	"github.com/Mag-201/nanda-agent/internal/events"
	"github.com/Mag-201/nanda-agent/internal/registry"
	"github.com/Mag-201/nanda-agent/internal/stock"
	"github.com/Mag-201/nanda-agent/internal/store"
	"github.com/Mag-201/nanda-agent/internal/weather"
)

// bridgeSender delivers an outbound message to a bridge endpoint.
// Allows injecting mock implementations for testing.
type bridgeSender interface {
	SendMessage(ctx context.Context, msg *bridge.Message) *bridge.Reply
}

// registryClient is the subset of registry operations the gateway uses.
type registryClient interface {
	Register(ctx context.Context, agentID, publicURL string) error
	Lookup(ctx context.Context, agentID string) (string, error)
	Clients(ctx context.Context) (json.RawMessage, error)
	SenderName(ctx context.Context, agentID string) (string, error)
}

// stockService answers /quote and /compare commands.
type stockService interface {
	QuoteText(ctx context.Context, symbol string) (string, error)
	CompareText(ctx context.Context, symbols []string) (string, error)
	HelpText() string
}

// weatherService answers /weather commands.
type weatherService interface {
	Report(ctx context.Context, place string) (string, error)
}

// askService answers /ask commands.
type askService interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Gateway is the HTTP front door for one agent's chat UI.
type Gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	localBridge bridgeSender
	newBridge   func(baseURL string) bridgeSender
	registry    registryClient
	stocks      stockService
	weather     weatherService
	asker       askService
	store       store.Store
	broadcaster *events.Broadcaster
	process     *BridgeProcess

	httpServer *http.Server
}

// New creates a gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	messageStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening message store: %w", err)
	}

	registryURL := registry.ResolveURL(cfg.Registry.URL, cfg.Registry.URLFile, config.DefaultRegistryURL)
	reg := registry.NewClient(registryURL, registry.Options{
		Attempts:           cfg.Registry.Attempts,
		InsecureSkipVerify: cfg.Registry.InsecureSkipVerify,
		Logger:             logger,
	})

	newBridge := func(baseURL string) bridgeSender {
		return bridge.NewClient(baseURL, cfg.Bridge.Timeout)
	}

	g := &Gateway{
		cfg:         cfg,
		logger:      logger,
		localBridge: newBridge(cfg.Bridge.URL),
		newBridge:   newBridge,
		registry:    reg,
		stocks:      stock.NewService(cfg.Stock.Lang, logger),
		weather:     weather.NewService(logger),
		asker:       anthropic.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
		store:       messageStore,
		broadcaster: events.NewBroadcaster(logger),
	}

	if len(cfg.Bridge.Command) > 0 {
		g.process = NewBridgeProcess(cfg, logger)
	}

	g.httpServer = &http.Server{
		Handler:           g.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// listen binds the configured address, falling back to the secondary address
// when the primary port is taken by another agent UI on the same host.
func (g *Gateway) listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", g.cfg.Server.Addr)
	if err == nil {
		return ln, nil
	}
	if g.cfg.Server.FallbackAddr == "" || !isAddrInUse(err) {
		return nil, fmt.Errorf("listening on %s: %w", g.cfg.Server.Addr, err)
	}

	g.logger.Warn("primary address in use, trying fallback",
		"addr", g.cfg.Server.Addr,
		"fallback", g.cfg.Server.FallbackAddr)

	ln, err = net.Listen("tcp", g.cfg.Server.FallbackAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on fallback %s: %w", g.cfg.Server.FallbackAddr, err)
	}
	return ln, nil
}

func isAddrInUse(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return strings.Contains(opErr.Err.Error(), "address already in use")
	}
	return false
}

// Run starts the bridge process and HTTP server and blocks until ctx is
// cancelled or the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	if g.process != nil {
		if err := g.process.Start(ctx); err != nil {
			return fmt.Errorf("starting bridge process: %w", err)
		}
	}

	go g.registerAgent(ctx)

	ln, err := g.listen()
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		scheme := "http"
		if g.cfg.SSL.CertFile != "" {
			scheme = "https"
		}
		g.logger.Info("gateway listening", "addr", ln.Addr().String(), "scheme", scheme)

		if g.cfg.SSL.CertFile != "" {
			serveErr <- g.httpServer.ServeTLS(ln, g.cfg.SSL.CertFile, g.cfg.SSL.KeyFile)
		} else {
			serveErr <- g.httpServer.Serve(ln)
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.shutdownComponents()
			return fmt.Errorf("http server: %w", err)
		}
	}

	return g.gracefulShutdown()
}

// registerAgent announces this agent to the registry on startup. Best effort:
// the UI stays usable against the local bridge even when the registry is
// unreachable or no public URL is configured.
func (g *Gateway) registerAgent(ctx context.Context) {
	if g.cfg.Agent.PublicURL == "" {
		g.logger.Info("skipping registry registration, no public_url configured")
		return
	}
	if err := g.registry.Register(ctx, g.cfg.Agent.ID, g.cfg.Agent.PublicURL); err != nil {
		g.logger.Warn("registry registration failed", "error", err)
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server, the bridge process, and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	g.shutdownComponents()
	return errors.Join(errs...)
}

func (g *Gateway) shutdownComponents() {
	if g.process != nil {
		g.process.Stop()
	}
	g.broadcaster.Close()
	if err := g.store.Close(); err != nil {
		g.logger.Warn("closing store", "error", err)
	}
}
