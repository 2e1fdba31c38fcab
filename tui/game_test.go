package tui

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/mcp-training/robotcrusher/game/animation"
	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init failed: %v", err)
	}
	screen.SetSize(80, 30)
	t.Cleanup(screen.Fini)
	return screen
}

func newMatch(t *testing.T) *engine.Match {
	t.Helper()
	m := engine.NewMatch(
		engine.WithRand(rand.New(rand.NewSource(7))),
		engine.WithScheduler(engine.NewManualScheduler()),
		engine.WithSession(engine.StaticSession{Name: "adam", Key: engine.AccessKey("adam", "local")}),
	)
	t.Cleanup(m.Close)
	return m
}

func glyphAt(screen tcell.SimulationScreen, x, y int) rune {
	r, _, _, _ := screen.GetContent(originX+x*cellWidth, originY+y)
	return r
}

type recordingMuter struct {
	calls []bool
}

func (r *recordingMuter) SetMuted(muted bool) { r.calls = append(r.calls, muted) }

func TestHandleEvent(t *testing.T) {
	g := New(newScreen(t))

	tests := []struct {
		name     string
		ev       *tcell.EventKey
		wantDir  engine.Cardinal
		wantQuit bool
	}{
		{"arrow up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), engine.North, false},
		{"arrow down", tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), engine.South, false},
		{"arrow left", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), engine.West, false},
		{"arrow right", tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone), engine.East, false},
		{"w", tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone), engine.North, false},
		{"a", tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone), engine.West, false},
		{"s", tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone), engine.South, false},
		{"d", tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone), engine.East, false},
		{"vi l", tcell.NewEventKey(tcell.KeyRune, 'l', tcell.ModNone), engine.East, false},
		{"q", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), "", true},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), "", true},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), "", true},
		{"other", tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, quit := g.handleEvent(tt.ev)
			if dir != tt.wantDir || quit != tt.wantQuit {
				t.Errorf("handleEvent() = %q, %v; want %q, %v", dir, quit, tt.wantDir, tt.wantQuit)
			}
		})
	}
}

func TestToggleMute(t *testing.T) {
	muter := &recordingMuter{}
	g := New(newScreen(t), WithMuter(muter))

	g.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone))
	g.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone))

	if len(muter.calls) != 2 || !muter.calls[0] || muter.calls[1] {
		t.Errorf("SetMuted calls = %v, want [true false]", muter.calls)
	}
	if g.message != "Sound on" {
		t.Errorf("message = %q, want %q", g.message, "Sound on")
	}

	// Without a muter the key is ignored
	plain := New(newScreen(t))
	plain.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'm', tcell.ModNone))
	if plain.message != "" {
		t.Errorf("message = %q, want none", plain.message)
	}
}

func testSnapshot() engine.Snapshot {
	return engine.Snapshot{
		State:       engine.StateRunning,
		Level:       2,
		Kills:       1,
		PlayerPower: 17,
		Width:       3,
		Height:      1,
		Cells: []engine.CellView{
			{Index: 0, X: 0, Y: 0, Content: &engine.ObjectView{ID: "wall", Type: engine.Wall}},
			{Index: 1, X: 1, Y: 0, Content: &engine.ObjectView{ID: "player", Type: engine.PlayerRobot}},
			{Index: 2, X: 2, Y: 0},
		},
	}
}

func TestDraw(t *testing.T) {
	screen := newScreen(t)
	g := New(screen)
	g.setSnapshot(testSnapshot())
	g.Draw()

	want := []rune{'#', 'P', '.'}
	for x, r := range want {
		if got := glyphAt(screen, x, 0); got != r {
			t.Errorf("cell %d = %q, want %q", x, got, r)
		}
	}

	status, _, _, _ := screen.GetContent(originX, 0)
	if status != 'L' {
		t.Errorf("status line starts with %q, want 'L'", status)
	}
}

func TestDrawAnimatedFrame(t *testing.T) {
	screen := newScreen(t)
	g := New(screen)
	g.setSnapshot(testSnapshot())

	sink := g.Sink()
	sink(animation.Frame{Subject: "player", Kind: engine.AnimateMove, Position: engine.Anchor{X: 1.6, Y: 0}, Scale: 1, Opacity: 1})
	g.Draw()

	if got := glyphAt(screen, 1, 0); got != '.' {
		t.Errorf("origin cell = %q, want empty while moving", got)
	}
	if got := glyphAt(screen, 2, 0); got != 'P' {
		t.Errorf("frame cell = %q, want 'P'", got)
	}

	sink(animation.Frame{Subject: "player", Done: true})
	g.Draw()
	if got := glyphAt(screen, 1, 0); got != 'P' {
		t.Errorf("cell after animation = %q, want 'P'", got)
	}
	if len(g.frames) != 0 {
		t.Errorf("frames = %v, want none after Done", g.frames)
	}
}

func TestGameOverMessage(t *testing.T) {
	g := New(newScreen(t))
	s := testSnapshot()
	s.State = engine.StateEnded
	g.setSnapshot(s)
	g.setMessage("Moved")

	if g.message != "Game over. Press q to quit" {
		t.Errorf("message = %q", g.message)
	}
}

func TestMoveReportsOutcome(t *testing.T) {
	g := New(newScreen(t))
	m := newMatch(t)
	if _, err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	g.move(context.Background(), m, engine.North)

	if g.message == "" {
		t.Error("expected an outcome message after the first move")
	}
}

func TestRunQuits(t *testing.T) {
	screen := newScreen(t)
	g := New(screen)
	m := newMatch(t)

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background(), m) }()

	// Give Run time to start the match before quitting
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != engine.StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("match did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after q")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	g := New(newScreen(t))
	m := newMatch(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, m) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
