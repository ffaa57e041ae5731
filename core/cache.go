package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CacheKey maps a request path to its directory under the output dir.
// The root page lives directly in the output dir.
func CacheKey(path string) string {
	return strings.Trim(path, "/")
}

func GetCachedHTML(config Config, route string) ([]byte, bool) {
	cachePath := filepath.Join(config.OutputDir, route, "index.html")

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}

	return content, true
}

// SaveCachedHTML stores html and a gzip copy next to it. Both files are
// renamed into place so readers never see a partial page.
func SaveCachedHTML(config Config, routeKey string, html []byte) error {
	outDir := filepath.Join(config.OutputDir, routeKey)
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	htmlPath := filepath.Join(outDir, "index.html")
	if err := writeFileAtomic(htmlPath, html); err != nil {
		return err
	}

	return writeGzip(htmlPath+".gz", html)
}

// ClearCache removes the whole output dir, pages and minified assets alike.
func ClearCache(config Config) error {
	if err := os.RemoveAll(config.OutputDir); err != nil {
		return fmt.Errorf("failed to clean cache: %w", err)
	}
	return nil
}

// ClearRoute removes the cached page of one route and its gzip copy. Other
// routes and assets stay. It reports whether anything was removed.
func ClearRoute(config Config, route string) (bool, error) {
	dir, err := routeCacheDir(config, route)
	if err != nil {
		return false, err
	}

	removed := false
	for _, name := range []string{"index.html", "index.html.gz"} {
		err := os.Remove(filepath.Join(dir, name))
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("failed to clean cache: %w", err)
		}
	}

	if removed && dir != filepath.Clean(config.OutputDir) {
		// Fails while nested routes remain, which is fine.
		_ = os.Remove(dir)
	}
	return removed, nil
}

func routeCacheDir(config Config, route string) (string, error) {
	root := filepath.Clean(config.OutputDir)
	dir := filepath.Join(root, filepath.FromSlash(CacheKey(route)))

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidRoute, route)
	}
	return dir, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
