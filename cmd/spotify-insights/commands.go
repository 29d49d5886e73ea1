package main

import "github.com/urfave/cli/v3"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (optional)",
			Sources: cli.EnvVars("SPOTIFY_INSIGHTS_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: trace, debug, info, warn or error",
		},
	}
}

// serveCommand runs the web application.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, e.g. 127.0.0.1:5001",
			},
			&cli.StringFlag{
				Name:  "session-backend",
				Usage: "Session storage: memory, sqlite or postgres",
			},
		},
		Action: r.Serve,
	}
}

// sessionsCommand groups session maintenance.
func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "Session storage maintenance",
		Commands: []*cli.Command{
			{
				Name:  "prune",
				Usage: "Delete expired sessions from the configured backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "session-backend",
						Usage: "Session storage: memory, sqlite or postgres",
					},
				},
				Action: r.SessionsPrune,
			},
		},
	}
}

// configCommand manages the configuration file.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example configuration file (default config.toml)",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Action: r.ConfigInit,
			},
		},
	}
}
