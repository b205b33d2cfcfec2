// ABOUTME: Serves the embedded chat page and markdown help content
// ABOUTME: Help markdown is converted to HTML with goldmark and wrapped in the page shell

package webui

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
)

// ChatPage returns the embedded single-page chat UI.
func ChatPage() ([]byte, error) {
	page, err := assetFS.ReadFile("assets/chat.html")
	if err != nil {
		return nil, fmt.Errorf("reading chat page: %w", err)
	}
	return page, nil
}

const helpShell = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Agent UI Help</title>
<style>
body { font-family: -apple-system, sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; color: #1a1a2e; }
code { background: #f0f0f5; padding: 2px 5px; border-radius: 3px; }
a { color: #4a5de8; }
</style>
</head>
<body>
{{.Content}}
<p><a href="/">Back to chat</a></p>
</body>
</html>`

var helpTemplate = template.Must(template.New("help").Parse(helpShell))

// HelpPage renders the embedded help markdown as a standalone HTML page.
// extra is appended below the built-in topics, for command help supplied by
// services at runtime.
func HelpPage(extra string) ([]byte, error) {
	md, err := assetFS.ReadFile("assets/help.md")
	if err != nil {
		return nil, fmt.Errorf("reading help markdown: %w", err)
	}
	if extra != "" {
		md = append(md, []byte("\n\n```\n"+extra+"\n```\n")...)
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert(md, &htmlBuf); err != nil {
		return nil, fmt.Errorf("converting help markdown: %w", err)
	}

	var page bytes.Buffer
	data := struct{ Content template.HTML }{Content: template.HTML(htmlBuf.String())}
	if err := helpTemplate.Execute(&page, data); err != nil {
		return nil, fmt.Errorf("rendering help page: %w", err)
	}
	return page.Bytes(), nil
}
