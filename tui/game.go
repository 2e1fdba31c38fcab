package tui

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/animation"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
)

const (
	frameInterval = 16 * time.Millisecond // ~60 FPS

	// Each cell is drawn two columns wide so the map looks square
	cellWidth = 2

	// Map origin on screen, below the status lines
	originX = 1
	originY = 3
)

var (
	styleDefault = tcell.StyleDefault
	styleWall    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCrusher = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	stylePlayer  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleEnemy   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleJuice   = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleEmpty   = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleFaded   = tcell.StyleDefault.Foreground(tcell.ColorDimGray)
)

// Muter toggles sound
type Muter interface {
	SetMuted(muted bool)
}

// Game renders a match in a terminal and turns key presses into moves
type Game struct {
	screen tcell.Screen
	muter  Muter

	mu       sync.Mutex
	snapshot engine.Snapshot
	frames   map[string]animation.Frame
	message  string
	muted    bool
}

// Option configures a Game
type Option func(*Game)

// WithMuter lets the m key toggle sound
func WithMuter(m Muter) Option {
	return func(g *Game) { g.muter = m }
}

// New creates a game bound to an initialized screen
func New(screen tcell.Screen, opts ...Option) *Game {
	g := &Game{
		screen: screen,
		frames: make(map[string]animation.Frame),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Sink records animation frames so the next draw shows robots in motion.
// Pass it to animation.NewTweenAnimator.
func (g *Game) Sink() animation.Sink {
	return func(frame animation.Frame) {
		g.mu.Lock()
		if frame.Done {
			delete(g.frames, frame.Subject)
		} else {
			g.frames[frame.Subject] = frame
		}
		g.mu.Unlock()
	}
}

// Run starts match, then draws it and handles input until the player quits or ctx is done
func (g *Game) Run(ctx context.Context, match *engine.Match) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots, unsubscribe := match.Subscribe()
	defer unsubscribe()

	if _, err := match.Start(ctx); err != nil {
		return fmt.Errorf("failed to start match: %w", err)
	}

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := g.screen.PollEvent()
			if ev == nil {
				// Screen finalized
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case snapshot, ok := <-snapshots:
			if !ok {
				return match.Err()
			}
			g.setSnapshot(snapshot)

		case ev := <-events:
			dir, quit := g.handleEvent(ev)
			if quit {
				return nil
			}
			if dir != "" {
				go g.move(ctx, match, dir)
			}

		case <-ticker.C:
			g.Draw()
		}
	}
}

// handleEvent maps an event to a direction or a quit request
func (g *Game) handleEvent(ev tcell.Event) (engine.Cardinal, bool) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return "", true
		case tcell.KeyUp:
			return engine.North, false
		case tcell.KeyDown:
			return engine.South, false
		case tcell.KeyLeft:
			return engine.West, false
		case tcell.KeyRight:
			return engine.East, false
		case tcell.KeyRune:
			return g.handleRune(ev.Rune())
		}

	case *tcell.EventResize:
		g.screen.Sync()
	}
	return "", false
}

func (g *Game) handleRune(r rune) (engine.Cardinal, bool) {
	switch r {
	case 'q', 'Q':
		return "", true
	case 'w', 'W', 'k':
		return engine.North, false
	case 's', 'S', 'j':
		return engine.South, false
	case 'a', 'A', 'h':
		return engine.West, false
	case 'd', 'D', 'l':
		return engine.East, false
	case 'm', 'M':
		g.toggleMute()
	}
	return "", false
}

func (g *Game) toggleMute() {
	if g.muter == nil {
		return
	}
	g.mu.Lock()
	g.muted = !g.muted
	muted := g.muted
	g.mu.Unlock()

	g.muter.SetMuted(muted)
	if muted {
		g.setMessage("Sound off")
	} else {
		g.setMessage("Sound on")
	}
}

// move asks the match to move the player and reports the outcome on the status line
func (g *Game) move(ctx context.Context, match *engine.Match, dir engine.Cardinal) {
	player := match.Player()
	if player == nil {
		return
	}

	outcome, err := match.Move(ctx, player, dir)
	if err != nil {
		log.WithError(err).Warn("move failed")
		g.setMessage(err.Error())
		return
	}
	if outcome != engine.OutcomeIgnored {
		g.setMessage(service.OutcomeMessage(outcome))
	}
}

func (g *Game) setSnapshot(s engine.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = s
	if s.State == engine.StateEnded {
		g.message = "Game over. Press q to quit"
	}
}

func (g *Game) setMessage(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.snapshot.State == engine.StateEnded {
		return
	}
	g.message = msg
}

// Draw renders the latest snapshot with any animation in progress
func (g *Game) Draw() {
	g.mu.Lock()
	snapshot := g.snapshot
	frames := make(map[string]animation.Frame, len(g.frames))
	for k, v := range g.frames {
		frames[k] = v
	}
	message := g.message
	g.mu.Unlock()

	g.screen.Clear()

	status := fmt.Sprintf("Level %d  Kills %d  Power %d  %s", snapshot.Level, snapshot.Kills, snapshot.PlayerPower, snapshot.State)
	g.drawText(originX, 0, status, styleStatus)
	g.drawText(originX, 1, message, styleDefault)

	// Objects in motion are drawn at their frame position instead of their cell
	moving := make(map[string]*engine.ObjectView)
	for _, cell := range snapshot.Cells {
		if cell.Content != nil {
			if _, ok := frames[cell.Content.ID]; ok {
				moving[cell.Content.ID] = cell.Content
				g.drawCell(cell.X, cell.Y, nil, styleEmpty)
				continue
			}
		}
		g.drawCell(cell.X, cell.Y, cell.Content, styleFor(cell.Content))
	}

	for id, frame := range frames {
		obj, ok := moving[id]
		if !ok {
			continue
		}
		style := styleFor(obj)
		if frame.Opacity < 0.5 || frame.Scale < 0.75 {
			style = styleFaded
		}
		x := int(math.Round(frame.Position.X))
		y := int(math.Round(frame.Position.Y))
		g.drawCell(x, y, obj, style)
	}

	legend := "arrows/wasd move  m mute  q quit"
	g.drawText(originX, originY+snapshot.Height+1, legend, styleFaded)

	g.screen.Show()
}

func (g *Game) drawCell(x, y int, obj *engine.ObjectView, style tcell.Style) {
	g.screen.SetContent(originX+x*cellWidth, originY+y, obj.Glyph(), nil, style)
}

func (g *Game) drawText(x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		g.screen.SetContent(x+i, y, r, nil, style)
	}
}

func styleFor(obj *engine.ObjectView) tcell.Style {
	if obj == nil {
		return styleEmpty
	}
	switch obj.Type {
	case engine.Wall:
		return styleWall
	case engine.Crusher:
		return styleCrusher
	case engine.PlayerRobot:
		return stylePlayer
	case engine.EnemyRobot:
		return styleEnemy
	case engine.Juice, engine.MegaJuice:
		return styleJuice
	}
	return styleDefault
}
