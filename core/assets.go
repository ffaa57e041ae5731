package core

import (
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	minjs "github.com/tdewolff/minify/v2/js"
)

var assetMediaTypes = map[string]string{
	".css": "text/css",
	".js":  "application/javascript",
}

// MinifyAsset returns the URL of a minified copy of a /static/ asset,
// writing the copy (and a gzip sibling) into cacheDir/static. Outside prod,
// or when anything fails, the original path is returned untouched.
func MinifyAsset(env, path, publicDir, cacheDir string) string {
	if env != "prod" {
		return path
	}

	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext)

	mediaType, ok := assetMediaTypes[ext]
	if !ok || strings.Contains(name, ".min") {
		return path
	}

	rel := strings.TrimPrefix(path, "/static/")
	original, err := os.ReadFile(filepath.Join(publicDir, rel))
	if err != nil {
		return path
	}

	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	m.AddFunc("application/javascript", minjs.Minify)

	var buf bytes.Buffer
	if err := m.Minify(mediaType, &buf, bytes.NewReader(original)); err != nil {
		return path
	}
	minified := buf.Bytes()

	relDir := filepath.Dir(rel)
	minName := fmt.Sprintf("%s.min%s", name, ext)
	target := filepath.Join(cacheDir, "static", relDir, minName)
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return path
	}
	if err := os.WriteFile(target, minified, 0644); err != nil {
		return path
	}
	if err := writeGzip(target+".gz", minified); err != nil {
		return path
	}

	return fmt.Sprintf("/static/%s?v=%s", filepath.ToSlash(filepath.Join(relDir, minName)), shortHash(minified))
}

// SiteTemplateFuncs is the function map every page is parsed with: the
// Sprig library plus the site's own asset helpers.
func SiteTemplateFuncs(env string, config Config) template.FuncMap {
	cacheDir := config.OutputDir
	funcs := sprig.FuncMap()

	funcs["minify"] = func(path string) string {
		return MinifyAsset(env, path, config.PublicDir, cacheDir)
	}
	funcs["props"] = func(values ...interface{}) map[string]interface{} {
		if len(values)%2 != 0 {
			panic("props must be called with even number of arguments")
		}
		m := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				panic("props keys must be strings")
			}
			m[key] = values[i+1]
		}
		return m
	}
	funcs["safeHTML"] = func(s interface{}) template.HTML {
		switch val := s.(type) {
		case template.HTML:
			return val
		case string:
			return template.HTML(val)
		default:
			return ""
		}
	}
	funcs["versioned"] = func(path string) string {
		if !strings.HasPrefix(path, "/static/") {
			return path
		}

		rel := strings.TrimPrefix(path, "/static/")
		locations := []string{
			filepath.Join(config.PublicDir, rel),
			filepath.Join(cacheDir, "static", rel),
		}

		for _, file := range locations {
			if content, err := os.ReadFile(file); err == nil {
				return fmt.Sprintf("/static/%s?v=%s", rel, shortHash(content))
			}
		}

		return path
	}

	return funcs
}

func shortHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])[:6]
}

func writeGzip(path string, content []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return writeFileAtomic(path, buf.Bytes())
}
