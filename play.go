package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/robotcrusher/game/animation"
	"github.com/wricardo/mcp-training/robotcrusher/game/audio"
	"github.com/wricardo/mcp-training/robotcrusher/game/config"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/tui"
)

// localCredential stands in for a password when playing offline
const localCredential = "local"

// loadPlayRules returns the named rule set, or the default one when name is empty
func loadPlayRules(rulesDir, name string) (*engine.Rules, error) {
	configs, err := config.NewManager(rulesDir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return configs.GetDefault(), nil
	}
	return configs.LoadRules(name)
}

// runPlay plays one match in the terminal
func runPlay(ctx context.Context, cmd *cli.Command) error {
	// The screen owns the terminal, so logs go to a file or nowhere
	log.SetOutput(io.Discard)
	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	rules, err := loadPlayRules(cmd.String("rules-dir"), cmd.String("rules"))
	if err != nil {
		return err
	}

	speaker := audio.NewSpeaker(audio.DefaultSampleRate)
	if err := speaker.Initialize(); err != nil {
		log.WithError(err).Warn("audio unavailable, playing without sound")
	}
	defer speaker.Close()

	cues := audio.NewCuePlayer(speaker, speaker.Rate())
	cues.SetMuted(cmd.Bool("mute"))

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	game := tui.New(screen, tui.WithMuter(cues))

	name := cmd.String("name")
	match := engine.NewMatch(
		engine.WithRules(rules),
		engine.WithAnimator(animation.NewTweenAnimator(game.Sink())),
		engine.WithAudio(cues),
		engine.WithSession(engine.StaticSession{Name: name, Key: engine.AccessKey(name, localCredential)}),
	)
	defer match.Close()

	log.WithFields(log.Fields{"rules": rules.Name, "player": name}).Info("starting terminal match")
	return game.Run(ctx, match)
}
