package cli

import (
	"github.com/go-barry/teamsite"
	"github.com/go-barry/teamsite/core"

	"github.com/urfave/cli/v2"
)

var portFlag = &cli.IntFlag{
	Name:    "port",
	Aliases: []string{"p"},
	Usage:   "port to listen on (overrides PORT)",
}

var DevCommand = &cli.Command{
	Name:  "dev",
	Usage: "Start teamsite in dev mode (no caching, live reload)",
	Flags: []cli.Flag{portFlag},
	Action: func(c *cli.Context) error {
		cfg, err := runtimeConfig(c, "dev", false)
		if err != nil {
			return err
		}
		teamsite.Start(cfg)
		return nil
	},
}

var ProdCommand = &cli.Command{
	Name:  "prod",
	Usage: "Start teamsite in production mode (caching on by default)",
	Flags: []cli.Flag{portFlag},
	Action: func(c *cli.Context) error {
		cfg, err := runtimeConfig(c, "prod", true)
		if err != nil {
			return err
		}
		teamsite.Start(cfg)
		return nil
	},
}

func runtimeConfig(c *cli.Context, env string, enableCache bool) (teamsite.RuntimeConfig, error) {
	listen, err := core.LoadListenConfig()
	if err != nil {
		return teamsite.RuntimeConfig{}, err
	}

	port := listen.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	return teamsite.RuntimeConfig{
		Env:         env,
		EnableCache: enableCache,
		Host:        listen.Host,
		Port:        port,
	}, nil
}
