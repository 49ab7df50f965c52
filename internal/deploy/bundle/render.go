package bundle

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"

	deploydomain "github.com/GoSim-25-26J-441/toolsmith-backend/internal/deploy/domain"
)

//go:embed assets/*
var assets embed.FS

var indexTmpl = template.Must(template.ParseFS(assets, "assets/index.html.tmpl"))

type indexData struct {
	Manifest    *deploydomain.Manifest
	Description template.HTML
}

// Render produces index.html, app.js, styles.css and manifest.json for m.
// The description is markdown; goldmark's default renderer drops raw HTML.
func Render(m *deploydomain.Manifest) (Files, error) {
	var desc bytes.Buffer
	if m.Description != "" {
		if err := goldmark.Convert([]byte(m.Description), &desc); err != nil {
			return nil, fmt.Errorf("failed to render description: %w", err)
		}
	}

	var index bytes.Buffer
	data := indexData{Manifest: m, Description: template.HTML(desc.String())}
	if err := indexTmpl.Execute(&index, data); err != nil {
		return nil, fmt.Errorf("failed to render index: %w", err)
	}

	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}

	files := Files{
		"index.html":    index.Bytes(),
		"manifest.json": manifest,
	}
	for _, name := range []string{"app.js", "styles.css"} {
		b, err := assets.ReadFile("assets/" + name)
		if err != nil {
			return nil, err
		}
		files[name] = b
	}
	return files, nil
}
