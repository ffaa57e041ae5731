package cli

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
)

//go:embed all:_starter
var starterFS embed.FS

var InitCommand = &cli.Command{
	Name:  "init",
	Usage: "Create a new teamsite project from the default starter",
	Action: func(c *cli.Context) error {
		targetDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		fmt.Println("🚀 Creating teamsite project in:", targetDir)

		created, skipped, err := copyEmbeddedDir(starterFS, "_starter", targetDir)
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		for _, rel := range skipped {
			fmt.Println("⏭️  Kept existing:", rel)
		}

		fmt.Printf("✅ Project created successfully (%d files written).\n", len(created))
		fmt.Println("▶  Run: teamsite dev")
		return nil
	},
}

// copyEmbeddedDir writes every file under sourceDir into targetDir. Files
// that already exist are left alone and reported as skipped.
func copyEmbeddedDir(source fs.FS, sourceDir string, targetDir string) (created, skipped []string, err error) {
	err = fs.WalkDir(source, sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		if rel == "." {
			return nil
		}

		targetPath := filepath.Join(targetDir, rel)

		if d.IsDir() {
			return os.MkdirAll(targetPath, os.ModePerm)
		}

		if _, err := os.Stat(targetPath); err == nil {
			skipped = append(skipped, rel)
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		data, err := fs.ReadFile(source, path)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), os.ModePerm); err != nil {
			return err
		}

		if err := os.WriteFile(targetPath, data, 0644); err != nil {
			return err
		}
		created = append(created, rel)
		return nil
	})
	return created, skipped, err
}
