// Command analyze prints quick, human-readable statistics about the maps a rule set
// generates. It starts many matches with fixed seeds and summarizes dimensions, wall
// and crusher counts, and highlights maps where the player is boxed in or cannot
// reach any crusher.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/robotcrusher/game/config"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

// MapStats describes one generated map
type MapStats struct {
	Width, Height int
	Walls         int
	Crushers      int
	Enemies       int
	Open          int // cells without a wall or crusher
	Unreachable   int // open cells the player cannot walk to
	PlayerStuck   bool
	CrusherAccess bool
}

// Summary aggregates the maps generated for one rule set
type Summary struct {
	Rules         string
	Samples       int
	Failures      int
	AvgWidth      float64
	AvgHeight     float64
	AvgWalls      float64
	AvgCrushers   float64
	AvgOpen       float64
	Stuck         int
	NoCrusher     int
	WithUnreached int
}

func main() {
	cmd := &cli.Command{
		Name:      "analyze",
		Usage:     "summarize the maps generated by rule sets",
		ArgsUsage: "[RULES...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules-dir", Value: "rules", Usage: "directory containing rule sets"},
			&cli.IntFlag{Name: "samples", Value: 200, Usage: "maps generated per rule set"},
			&cli.Int64Flag{Name: "seed", Value: 1, Usage: "seed of the first map"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	// Every generated match logs its start
	log.SetLevel(log.WarnLevel)

	configs, err := config.NewManager(cmd.String("rules-dir"))
	if err != nil {
		return err
	}

	names := cmd.Args().Slice()
	if len(names) == 0 {
		infos, err := configs.ListRules()
		if err != nil {
			return err
		}
		for _, info := range infos {
			names = append(names, info.RulesID)
		}
	}

	for _, name := range names {
		rules, err := configs.LoadRules(name)
		if err != nil {
			fmt.Fprintf(cmd.Writer, "\n=== %s ===\nError loading rules: %v\n", name, err)
			continue
		}
		summary := analyzeRules(ctx, rules, int(cmd.Int("samples")), cmd.Int64("seed"))
		printSummary(cmd.Writer, summary)
	}
	return nil
}

// analyzeRules starts samples matches seeded from seed and summarizes their first maps
func analyzeRules(ctx context.Context, rules *engine.Rules, samples int, seed int64) Summary {
	summary := Summary{Rules: rules.Name, Samples: samples}
	if samples <= 0 {
		return summary
	}

	var ok int
	for i := 0; i < samples; i++ {
		match := engine.NewMatch(
			engine.WithRules(rules),
			engine.WithRand(rand.New(rand.NewSource(seed+int64(i)))),
			engine.WithScheduler(engine.NewManualScheduler()),
			engine.WithSession(engine.StaticSession{Name: "analyze", Key: "analyze"}),
		)
		_, err := match.Start(ctx)
		snapshot := match.Snapshot()
		match.Close()
		if err != nil {
			summary.Failures++
			continue
		}

		stats := analyzeSnapshot(snapshot)
		ok++
		summary.AvgWidth += float64(stats.Width)
		summary.AvgHeight += float64(stats.Height)
		summary.AvgWalls += float64(stats.Walls)
		summary.AvgCrushers += float64(stats.Crushers)
		summary.AvgOpen += float64(stats.Open)
		if stats.PlayerStuck {
			summary.Stuck++
		}
		if !stats.CrusherAccess {
			summary.NoCrusher++
		}
		if stats.Unreachable > 0 {
			summary.WithUnreached++
		}
	}

	if ok > 0 {
		n := float64(ok)
		summary.AvgWidth /= n
		summary.AvgHeight /= n
		summary.AvgWalls /= n
		summary.AvgCrushers /= n
		summary.AvgOpen /= n
	}
	return summary
}

// analyzeSnapshot counts objects and walks the map from the player. Moves wrap
// around edges like edge jumps do; enemies and power-ups count as open.
func analyzeSnapshot(s engine.Snapshot) MapStats {
	stats := MapStats{Width: s.Width, Height: s.Height}
	if s.Width <= 0 || s.Height <= 0 || len(s.Cells) != s.Width*s.Height {
		return stats
	}

	stats.Walls = engine.CountObjects(s, engine.Wall)
	stats.Crushers = engine.CountObjects(s, engine.Crusher)
	stats.Enemies = engine.CountObjects(s, engine.EnemyRobot)
	stats.Open = len(s.Cells) - stats.Walls - stats.Crushers

	coords, ok := engine.FindObject(s, engine.PlayerRobot)
	if !ok {
		stats.Unreachable = stats.Open
		return stats
	}
	player := coords.Y*s.Width + coords.X

	stats.PlayerStuck = true
	for _, dir := range engine.Directions {
		if typeAt(s, neighbor(s, player, dir)) != engine.Wall {
			stats.PlayerStuck = false
			break
		}
	}

	visited := map[int]bool{player: true}
	queue := []int{player}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dir := range engine.Directions {
			next := neighbor(s, current, dir)
			switch typeAt(s, next) {
			case engine.Wall:
				continue
			case engine.Crusher:
				stats.CrusherAccess = true
				continue
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	stats.Unreachable = stats.Open - len(visited)
	return stats
}

func neighbor(s engine.Snapshot, index int, dir engine.Cardinal) int {
	offset := dir.Offset()
	x := (index%s.Width + offset.X + s.Width) % s.Width
	y := (index/s.Width + offset.Y + s.Height) % s.Height
	return y*s.Width + x
}

func typeAt(s engine.Snapshot, index int) engine.ObjectType {
	content := s.Cells[index].Content
	if content == nil {
		return ""
	}
	return content.Type
}

func printSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n=== Analyzing %s ===\n", s.Rules)
	fmt.Fprintf(w, "Samples: %d (failed to generate: %d)\n", s.Samples, s.Failures)
	fmt.Fprintf(w, "Average size: %.1f x %.1f\n", s.AvgWidth, s.AvgHeight)
	fmt.Fprintf(w, "Average walls: %.1f, crushers: %.1f, open cells: %.1f\n", s.AvgWalls, s.AvgCrushers, s.AvgOpen)

	if s.Stuck > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d maps box the player in with walls\n", s.Stuck)
	}
	if s.NoCrusher > 0 {
		fmt.Fprintf(w, "⚠️  CRITICAL: %d maps have no crusher the player can reach\n", s.NoCrusher)
	} else {
		fmt.Fprintf(w, "✅ Every map has a reachable crusher\n")
	}
	if s.WithUnreached > 0 {
		fmt.Fprintf(w, "⚠️  %d maps have open cells the player cannot walk to\n", s.WithUnreached)
	} else {
		fmt.Fprintf(w, "✅ All open cells are reachable on every map\n")
	}
}
