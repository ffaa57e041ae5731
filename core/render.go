package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
)

const layoutDirectivePrefix = "<!-- layout:"

// Renderer turns a page template into HTML. Templates are read from disk on
// every call, so edits are picked up without a restart and a missing file
// only fails the request that asked for it.
type Renderer struct {
	config   Config
	env      string
	minifier *minify.M
}

func NewRenderer(config Config, env string) *Renderer {
	r := &Renderer{config: config, env: env}
	if env == "prod" && config.MinifyHTML {
		r.minifier = minify.New()
		r.minifier.Add("text/html", &minhtml.Minifier{
			KeepDocumentTags: true,
			KeepEndTags:      true,
			KeepQuotes:       true,
		})
	}
	return r
}

// Render executes the named page with data. The page is fully rendered into
// memory before anything is returned, so callers never write half a page.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	pagePath := filepath.Join(r.config.TemplateDir, name)
	if _, err := os.Stat(pagePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, pagePath)
		}
		return nil, fmt.Errorf("stat %s: %w", pagePath, err)
	}

	components, err := r.componentFiles()
	if err != nil {
		return nil, err
	}

	files := append([]string{pagePath}, components...)
	entry := filepath.Base(pagePath)

	layout, err := r.getLayoutPath(pagePath)
	if err != nil {
		return nil, err
	}
	if layout != "" {
		if _, err := os.Stat(layout); err != nil {
			return nil, fmt.Errorf("%w: layout %s", ErrTemplateNotFound, layout)
		}
		files = append([]string{layout}, files...)
		entry = "layout"
	}

	tmpl, err := template.New(filepath.Base(files[0])).
		Funcs(SiteTemplateFuncs(r.env, r.config)).
		ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}

	out := buf.Bytes()
	if r.env == "dev" {
		out = injectReloadScript(out)
	}
	if r.minifier != nil {
		minified, err := r.minifier.Bytes("text/html", out)
		if err != nil {
			return nil, fmt.Errorf("minify %s: %w", name, err)
		}
		out = minified
	}

	return out, nil
}

// getLayoutPath returns the layout named by a leading
// "<!-- layout: file.html -->" comment, resolved against the template dir.
// Blank lines before the directive are skipped; any other content ends the
// search.
func (r *Renderer) getLayoutPath(pagePath string) (string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", pagePath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, layoutDirectivePrefix) && strings.HasSuffix(line, "-->") {
			layout := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(line, layoutDirectivePrefix), "-->"))
			if layout == "" {
				return "", nil
			}
			return filepath.Join(r.config.TemplateDir, layout), nil
		}
		break
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", pagePath, err)
	}
	return "", nil
}

func (r *Renderer) componentFiles() ([]string, error) {
	components, err := filepath.Glob(filepath.Join(r.config.TemplateDir, "components", "*.html"))
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	return components, nil
}
