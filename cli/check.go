package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-barry/teamsite/core"
	"github.com/urfave/cli/v2"
)

var CheckCommand = &cli.Command{
	Name:  "check",
	Usage: "Render every page template, layout and component once",
	Action: func(c *cli.Context) error {
		config, err := core.LoadConfig(core.ConfigFile)
		if err != nil {
			return err
		}

		renderer := core.NewRenderer(*config, "dev")
		var failed bool

		for _, route := range core.Pages() {
			if err := checkPage(renderer, route); err != nil {
				failed = true
				fmt.Printf("❌ %s → %v\n", route.Path, err)
				continue
			}
			fmt.Printf("✅ %s (%s)\n", route.Path, route.Template)
		}

		_, err = renderer.Render("404.html", map[string]interface{}{"Path": "/missing"})
		switch {
		case err == nil:
			fmt.Println("✅ 404 (404.html)")
		case errors.Is(err, core.ErrTemplateNotFound):
			fmt.Println("ℹ️  No 404.html, the plain not-found response will be used")
		default:
			failed = true
			fmt.Printf("❌ 404 → %v\n", err)
		}

		if failed {
			return cli.Exit("some templates failed to render", 1)
		}

		fmt.Println("✅ All templates validated successfully.")
		return nil
	},
}

func checkPage(renderer *core.Renderer, route core.PageRoute) error {
	data := map[string]interface{}{}
	if route.Data != nil {
		req, err := http.NewRequest(http.MethodGet, route.Path, nil)
		if err != nil {
			return err
		}
		if data, err = route.Data(req); err != nil {
			return fmt.Errorf("data error: %w", err)
		}
	}

	_, err := renderer.Render(route.Template, data)
	return err
}
