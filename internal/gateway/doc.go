// ABOUTME: Package documentation for the gateway
// ABOUTME: Explains how the UI gateway relates to the bridge and registry

// Package gateway serves the chat UI for a single agent and glues its pieces
// together: slash commands answered locally, ordinary messages delivered
// through a bridge client, inbound messages persisted and fanned out to
// stream subscribers, and an optional bridge child process supervised for
// the lifetime of the server.
package gateway
