package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-barry/teamsite/core"
	"github.com/urfave/cli/v2"
)

var InfoCommand = &cli.Command{
	Name:  "info",
	Usage: "Print project structure and cache summary",
	Action: func(c *cli.Context) error {
		config, err := core.LoadConfig(core.ConfigFile)
		if err != nil {
			return err
		}

		fmt.Println("📁 Output Directory:", config.OutputDir)
		fmt.Println("📁 Template Directory:", config.TemplateDir)
		fmt.Println("📁 Public Directory:", config.PublicDir)
		fmt.Println("🔁 Cache Enabled (prod):", config.CacheEnabled)
		fmt.Println("🔁 HTML Minify (prod):", config.MinifyHTML)
		fmt.Println("🔁 Debug Headers Enabled:", config.DebugHeaders)
		fmt.Println("🔁 Debug Logs Enabled:", config.DebugLogs)
		fmt.Println()

		pages := core.Pages()
		fmt.Println("🗂️  Pages:", len(pages))
		for _, page := range pages {
			status := "✅"
			if _, err := os.Stat(filepath.Join(config.TemplateDir, page.Template)); err != nil {
				status = "❌ missing"
			}
			fmt.Printf("   %s → %s %s\n", page.Path, page.Template, status)
		}

		components, _ := filepath.Glob(filepath.Join(config.TemplateDir, "components", "*.html"))

		cacheCount := 0
		filepath.Walk(config.OutputDir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() && info.Name() == "index.html" {
				cacheCount++
			}
			return nil
		})

		fmt.Println("📦 Components Found:", len(components))
		fmt.Println("💾 Cached Pages:", cacheCount)

		return nil
	},
}
