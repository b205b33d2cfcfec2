// ABOUTME: Embeds the chat page and help docs into the binary using go:embed
// ABOUTME: Provides assetFS for serving UI assets at runtime

package webui

import "embed"

//go:embed assets/chat.html assets/help.md
var assetFS embed.FS
