// ABOUTME: Slash command routing for chat input
// ABOUTME: Handles /help, /quote, /compare, /weather, and /ask before the bridge sees anything

package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var commandPattern = regexp.MustCompile(`^/(\w+)\s*(.*)$`)

// targetPattern matches "@agent_id rest of message".
var targetPattern = regexp.MustCompile(`^@(\S+)\s+(.+)$`)

// splitTarget separates an optional @agent_id prefix from the message body.
func splitTarget(message string) (target, text string) {
	message = strings.TrimSpace(message)
	if m := targetPattern.FindStringSubmatch(message); m != nil {
		return m[1], m[2]
	}
	return "", message
}

// runCommand handles slash commands and the @stock aliases. handled is false
// for ordinary chat messages, which the caller forwards to the bridge.
func (g *Gateway) runCommand(ctx context.Context, message string) (reply string, handled bool) {
	trimmed := strings.TrimSpace(message)

	// "@stock ..." is a command alias, not a peer named stock.
	if reply, ok := g.runStockAlias(ctx, trimmed); ok {
		return reply, true
	}

	m := commandPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", false
	}
	command, args := strings.ToLower(m[1]), strings.TrimSpace(m[2])

	switch command {
	case "help":
		return g.helpText(), true

	case "quote":
		if args == "" {
			return "usage: /quote <symbol>", true
		}
		text, err := g.stocks.QuoteText(ctx, args)
		if err != nil {
			g.logger.Warn("quote command failed", "symbol", args, "error", err)
			return fmt.Sprintf("could not fetch a quote for %s", strings.ToUpper(args)), true
		}
		return text, true

	case "compare":
		symbols := strings.Fields(args)
		if len(symbols) < 2 {
			return "usage: /compare <symbol> <symbol> ...", true
		}
		text, err := g.stocks.CompareText(ctx, symbols)
		if err != nil {
			g.logger.Warn("compare command failed", "symbols", symbols, "error", err)
			return "could not fetch quotes for comparison", true
		}
		return text, true

	case "weather":
		if args == "" {
			return "usage: /weather <place>", true
		}
		report, err := g.weather.Report(ctx, args)
		if err != nil {
			g.logger.Warn("weather command failed", "place", args, "error", err)
			return fmt.Sprintf("could not fetch weather for %s", args), true
		}
		return report, true

	case "ask":
		if args == "" {
			return "usage: /ask <question>", true
		}
		if !g.asker.Configured() {
			return "no language model configured; set an API key to use /ask", true
		}
		answer, err := g.asker.Ask(ctx, args)
		if err != nil {
			g.logger.Warn("ask command failed", "error", err)
			return "the language model did not answer", true
		}
		return answer, true
	}

	// Unknown slash commands are forwarded as plain messages. Peers may
	// implement commands this UI does not know about.
	return "", false
}

// runStockAlias handles "@stock help" and "@stock price <TICKER>", which the
// help text advertises alongside the slash forms.
func (g *Gateway) runStockAlias(ctx context.Context, message string) (string, bool) {
	fields := strings.Fields(message)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "@stock") {
		return "", false
	}
	if len(fields) == 1 {
		return "usage: @stock help | @stock price <symbol>", true
	}

	switch strings.ToLower(fields[1]) {
	case "help":
		return g.helpText(), true
	case "price":
		if len(fields) < 3 {
			return "usage: @stock price <symbol>", true
		}
		text, err := g.stocks.QuoteText(ctx, fields[2])
		if err != nil {
			g.logger.Warn("quote command failed", "symbol", fields[2], "error", err)
			return fmt.Sprintf("could not fetch a quote for %s", strings.ToUpper(fields[2])), true
		}
		return text, true
	default:
		return "usage: @stock help | @stock price <symbol>", true
	}
}

func (g *Gateway) helpText() string {
	lines := []string{
		"Commands:",
		"/help - show this help",
		g.stocks.HelpText(),
		"@stock help and @stock price <symbol> also work",
		"/weather <place> - current conditions for a city",
		"/ask <question> - ask the configured language model",
		"",
		"Prefix a message with @agent_id to send it to another agent.",
	}
	return strings.Join(lines, "\n")
}
