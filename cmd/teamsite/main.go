package main

import (
	"log"
	"os"

	teamcli "github.com/go-barry/teamsite/cli"
	clilib "github.com/urfave/cli/v2"
)

func runApp(args []string) error {
	app := &clilib.App{
		Name:  "teamsite",
		Usage: "Serve the team site from HTML templates",
		Commands: []*clilib.Command{
			teamcli.InitCommand,
			teamcli.DevCommand,
			teamcli.ProdCommand,
			teamcli.CleanCommand,
			teamcli.CheckCommand,
			teamcli.InfoCommand,
		},
	}
	return app.Run(args)
}

func main() {
	if err := runApp(os.Args); err != nil {
		log.Fatal(err)
	}
}
