package cli

import (
	"fmt"
	"os"

	"github.com/go-barry/teamsite/core"
	"github.com/urfave/cli/v2"
)

var CleanCommand = &cli.Command{
	Name:      "clean",
	Usage:     "Delete cached HTML from the output directory (default: outputDir in teamsite.config.yml)",
	ArgsUsage: "[route (optional)]",
	Action: func(c *cli.Context) error {
		config, err := core.LoadConfig(core.ConfigFile)
		if err != nil {
			return err
		}

		if c.Args().Len() > 0 {
			return cleanRoute(*config, c.Args().Get(0))
		}

		target := config.OutputDir
		info, err := os.Stat(target)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("🧼 Nothing to clean:", target)
				return nil
			}
			return fmt.Errorf("failed to access path: %w", err)
		}

		if !info.IsDir() {
			return fmt.Errorf("not a directory: %s", target)
		}

		fmt.Println("🧹 Cleaning:", target)
		if err := core.ClearCache(*config); err != nil {
			return err
		}

		fmt.Println("✅ Done.")
		return nil
	},
}

func cleanRoute(config core.Config, route string) error {
	removed, err := core.ClearRoute(config, route)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("🧼 Nothing cached for:", route)
		return nil
	}

	fmt.Println("🧹 Cleaned route:", route)
	fmt.Println("✅ Done.")
	return nil
}
