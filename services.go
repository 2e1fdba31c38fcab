package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/robotcrusher/game/animation"
	"github.com/wricardo/mcp-training/robotcrusher/game/auth"
	"github.com/wricardo/mcp-training/robotcrusher/game/config"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/scoreboard"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
	"github.com/wricardo/mcp-training/robotcrusher/game/session"
)

// options holds what initializeServices needs from flags
type options struct {
	RulesDir   string
	DataDir    string
	Scoreboard string
	AuthSecret string
	Animate    bool
}

func optionsFrom(cmd *cli.Command) options {
	return options{
		RulesDir:   cmd.String("rules-dir"),
		DataDir:    cmd.String("data-dir"),
		Scoreboard: cmd.String("scoreboard"),
		AuthSecret: cmd.String("auth-secret"),
		Animate:    cmd.Bool("animate"),
	}
}

// services bundles everything the server modes share
type services struct {
	game     service.GameService
	sessions *session.Manager
	configs  *config.Manager
	closers  []io.Closer
}

// Close stops every match and closes the stores
func (s *services) Close() error {
	s.sessions.CloseAll()
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// initializeServices wires rules, results, accounts, sessions and the game service
func initializeServices(opts options) (*services, error) {
	configs, err := config.NewManager(opts.RulesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create rules manager: %w", err)
	}

	s := &services{configs: configs, sessions: session.NewManager()}

	var results service.ResultStore
	var accounts auth.AccountStore

	switch opts.Scoreboard {
	case "sqlite", "":
		if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := scoreboard.OpenSQLite(filepath.Join(opts.DataDir, "robotcrusher.db"))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		results, accounts = store, store
	case "file":
		store, err := scoreboard.NewFileStore(filepath.Join(opts.DataDir, "results"))
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store)
		// Accounts only live as long as the process
		results = store
	default:
		return nil, fmt.Errorf("unknown scoreboard %q (use sqlite or file)", opts.Scoreboard)
	}

	serviceOpts := []service.Option{
		service.WithResults(results),
		service.WithAuthenticator(auth.New(accounts, []byte(opts.AuthSecret))),
	}
	if opts.Animate {
		serviceOpts = append(serviceOpts, service.WithMatchOptions(func() []engine.Option {
			return []engine.Option{engine.WithAnimator(animation.NewTweenAnimator(nil))}
		}))
	}

	s.game = service.NewGameService(s.sessions, configs, serviceOpts...)

	log.WithFields(log.Fields{
		"rules_dir":  opts.RulesDir,
		"data_dir":   opts.DataDir,
		"scoreboard": opts.Scoreboard,
	}).Info("services initialized")
	return s, nil
}

// runRulesList prints every available rule set
func runRulesList(ctx context.Context, cmd *cli.Command) error {
	configs, err := config.NewManager(cmd.String("rules-dir"))
	if err != nil {
		return err
	}
	infos, err := configs.ListRules()
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	for _, info := range infos {
		source := info.Filename
		if source == "" {
			source = "built-in"
		}
		fmt.Fprintf(out, "%-12s %3dx%-3d power %-3d bonus %-3d %s (%s)\n",
			info.RulesID, info.MaxWidth, info.MaxHeight, info.RobotPower, info.EnemyLifeBonus, info.Description, source)
	}
	return nil
}

// runRulesValidate loads and validates each file named on the command line
func runRulesValidate(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("name at least one rules file")
	}

	out := cmd.Root().Writer
	failed := 0
	for _, file := range files {
		rules, err := engine.LoadRules(file)
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", file, err)
			continue
		}
		fmt.Fprintf(out, "OK   %s (%s)\n", file, rules.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d rules files are invalid", failed, len(files))
	}
	return nil
}
