// Package config handles configuration loading for nanda-ui.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion,
// or built entirely from the environment when no file exists. The package
// provides validation and the defaults the original deployment hardcodes.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	anthropic:
//	  api_key: "${ANTHROPIC_API_KEY}"
//
// # Env-only Mode
//
// Deployments that only carry a .env file use FromEnv, which maps the
// historical variable names (AGENT_ID, PORT, UI_ADDR, REGISTRY_URL,
// ANTHROPIC_API_KEY, STOCK_LANG, ...) onto the same Config struct.
// LoadEnvFileCandidates loads .env files first without overriding the
// process environment.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	bridge:
//	  timeout: "60s"
//	  startup_grace: "2s"
package config
