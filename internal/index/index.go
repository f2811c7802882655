// Package index renders the static listing pages for published games.
//
// Rendering is deterministic: the same published set always produces
// byte-identical output, so regeneration is safe to run after every pipeline
// run without churning the public tree.
package index

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
)

// Entry is one published game on the index page, in display order.
type Entry struct {
	// Name is the game name and public path segment.
	Name string

	// Description is the manifest description, markdown allowed.
	Description string

	// Tags are the manifest tags in manifest order.
	Tags []string
}

// Site carries the page-level metadata for rendering.
type Site struct {
	Title       string
	Description string
	BaseURL     string
}

// Generator renders the index document and per-game info pages.
type Generator struct {
	site     Site
	markdown goldmark.Markdown
	indexTpl *template.Template
	infoTpl  *template.Template
}

// NewGenerator creates a generator for the given site metadata.
func NewGenerator(site Site) *Generator {
	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	return &Generator{
		site:     site,
		markdown: goldmark.New(),
		indexTpl: template.Must(template.New("index").Parse(indexTemplate)),
		infoTpl:  template.Must(template.New("info").Parse(infoTemplate)),
	}
}

// Render produces the index document listing entries in the given order.
// Entries must already be filtered to actually-published games.
func (g *Generator) Render(entries []Entry) ([]byte, error) {
	type viewEntry struct {
		Name        string
		Description template.HTML
		Tags        []string
		PlayHref    string
		InfoHref    string
	}

	view := struct {
		Site    Site
		Entries []viewEntry
	}{Site: g.site}

	for _, e := range entries {
		desc, err := g.renderMarkdown(e.Description)
		if err != nil {
			return nil, fmt.Errorf("render description for %s: %w", e.Name, err)
		}
		view.Entries = append(view.Entries, viewEntry{
			Name:        e.Name,
			Description: desc,
			Tags:        e.Tags,
			PlayHref:    "/" + e.Name + "/",
			InfoHref:    "/" + e.Name + "/info/",
		})
	}

	var buf bytes.Buffer
	if err := g.indexTpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute index template: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the index document and writes it atomically into dir as
// index.html. The directory is created if needed: the index exists after
// every run, even when nothing has ever been published into dir.
func (g *Generator) Write(dir string, entries []Entry) error {
	data, err := g.Render(entries)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, "index.html"), data)
}

// WriteInfoPage renders the metadata page for one game into dir/info/.
// The page is part of the staged artifact, so it participates in the same
// atomic swap as the game content itself.
func (g *Generator) WriteInfoPage(dir string, entry Entry, commit string) error {
	desc, err := g.renderMarkdown(entry.Description)
	if err != nil {
		return fmt.Errorf("render description for %s: %w", entry.Name, err)
	}

	view := struct {
		Site        Site
		Name        string
		Description template.HTML
		Tags        []string
		Commit      string
		PlayHref    string
	}{
		Site:        g.site,
		Name:        entry.Name,
		Description: desc,
		Tags:        entry.Tags,
		Commit:      commit,
		PlayHref:    "/" + entry.Name + "/",
	}

	var buf bytes.Buffer
	if err := g.infoTpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("execute info template: %w", err)
	}

	infoDir := filepath.Join(dir, "info")
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return fmt.Errorf("create info dir: %w", err)
	}
	return writeFileAtomic(filepath.Join(infoDir, "index.html"), buf.Bytes())
}

func (g *Generator) renderMarkdown(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := g.markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	// #nosec G203 - goldmark escapes raw HTML by default
	return template.HTML(buf.String()), nil
}

// writeFileAtomic writes via a temp sibling and rename so concurrent readers
// never see a partially written page.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
