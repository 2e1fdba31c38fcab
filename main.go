// Command robotcrusher runs the Robot Crusher game.
//
// Commands:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket streaming and an /mcp endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" plays a match in the terminal with animation and sound
//  4. "rules" lists and validates rule sets
//
// Every flag can also be set from the environment (ROBOTCRUSHER_*), and a .env
// file in the working directory is loaded first.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Robot Crusher"
)

const envPrefix = "ROBOTCRUSHER_"

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "robotcrusher",
		Usage:   "push enemy robots into crushers, alone in a terminal or over HTTP and MCP",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: env("DEBUG")},
			&cli.StringFlag{Name: "rules-dir", Value: "rules", Usage: "directory containing rule sets", Sources: cli.EnvVars(envPrefix+"RULES_DIR", "CONFIG_DIR")},
			&cli.StringFlag{Name: "data-dir", Value: "data", Usage: "directory for results and accounts", Sources: env("DATA_DIR")},
			&cli.StringFlag{Name: "addr", Value: "localhost:8080", Usage: "HTTP listen address", Sources: env("ADDR")},
			&cli.StringFlag{Name: "scoreboard", Value: "sqlite", Usage: "result store: sqlite or file", Sources: env("SCOREBOARD")},
			&cli.StringFlag{Name: "auth-secret", Usage: "secret used to sign player tokens", Sources: env("AUTH_SECRET")},
			&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "remove matches not accessed for this long", Sources: env("SESSION_TTL")},
			&cli.BoolFlag{Name: "animate", Value: true, Usage: "play move animations on server matches so input locks like in the terminal", Sources: env("ANIMATE")},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars(envPrefix+"NGROK", "NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action: runServe,
			},
			{
				Name:  "mcp",
				Usage: "run an MCP stdio server backed by the REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Value: "http://localhost:8080", Usage: "REST API to proxy; an internal server starts when it is not reachable", Sources: env("API_URL")},
				},
				Action: runMCP,
			},
			{
				Name:  "play",
				Usage: "play a match in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "rules", Usage: "rule set to play (default rules when empty)"},
					&cli.StringFlag{Name: "name", Value: "player", Usage: "player name", Sources: cli.EnvVars(envPrefix+"PLAYER", "USER")},
					&cli.BoolFlag{Name: "mute", Usage: "start without sound"},
					&cli.StringFlag{Name: "log-file", Usage: "write logs to this file while playing"},
				},
				Action: runPlay,
			},
			{
				Name:  "rules",
				Usage: "manage rule sets",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "list available rule sets",
						Action: runRulesList,
					},
					{
						Name:      "validate",
						Usage:     "check rule set files",
						ArgsUsage: "FILE...",
						Action:    runRulesValidate,
					},
				},
			},
		},
	}
}

// main loads the environment, then runs the selected command until it returns or a signal arrives
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("error loading .env file")
		}
	} else {
		log.Debug("loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}
