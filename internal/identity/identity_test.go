// ABOUTME: Tests for agent ID generation
// ABOUTME: Covers prefix selection and sequential numbering

package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixFor(t *testing.T) {
	assert.Equal(t, "agentm", PrefixFor("https://chat.nanda-registry.com:6900"))
	assert.Equal(t, "agents", PrefixFor("http://localhost:6900"))
	assert.Equal(t, "agents", PrefixFor(""))
}

func TestGenerateIDs(t *testing.T) {
	ids := GenerateIDs("", "http://localhost:6900", 3)
	assert.Equal(t, []string{"agents1", "agents2", "agents3"}, ids)

	ids = GenerateIDs("", "https://chat.nanda-registry.com:6900", 2)
	assert.Equal(t, []string{"agentm1", "agentm2"}, ids)
}

func TestGenerateIDs_CustomPrefix(t *testing.T) {
	ids := GenerateIDs("team", "", 2)
	assert.Equal(t, []string{"team1", "team2"}, ids)
}

func TestGenerateIDs_NonPositiveCount(t *testing.T) {
	assert.Nil(t, GenerateIDs("", "", 0))
	assert.Nil(t, GenerateIDs("", "", -1))
}
