// ABOUTME: Agent ID generation for registry enrollment
// ABOUTME: Picks an ID prefix based on the registry host and numbers agents from one

package identity

import (
	"fmt"
	"strings"
)

const (
	// hostedPrefix is used for agents enrolled against the hosted registry.
	hostedPrefix = "agentm"
	// defaultPrefix is used for self-hosted registries.
	defaultPrefix = "agents"
)

// PrefixFor returns the ID prefix for a registry URL. The hosted registry
// uses a distinct namespace so its agents never collide with self-hosted ones.
func PrefixFor(registryURL string) string {
	if strings.Contains(registryURL, "nanda-registry.com") {
		return hostedPrefix
	}
	return defaultPrefix
}

// GenerateIDs produces count sequential agent IDs. An empty prefix selects
// one based on the registry URL. Numbering starts at one.
func GenerateIDs(prefix, registryURL string, count int) []string {
	if count <= 0 {
		return nil
	}
	if prefix == "" {
		prefix = PrefixFor(registryURL)
	}

	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, fmt.Sprintf("%s%d", prefix, i))
	}
	return ids
}
