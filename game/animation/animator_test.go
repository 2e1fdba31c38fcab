package animation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

// instant returns an animator that records sleeps instead of waiting
func instant(sink Sink) (*TweenAnimator, *[]time.Duration) {
	var slept []time.Duration
	a := NewTweenAnimator(sink)
	a.sleep = func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		slept = append(slept, d)
		return nil
	}
	return a, &slept
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func TestAnimate_Move(t *testing.T) {
	var frames []Frame
	a, slept := instant(func(f Frame) { frames = append(frames, f) })

	err := a.Animate(context.Background(), engine.Animation{
		Kind:    engine.AnimateMove,
		Subject: "robot",
		From:    engine.Anchor{X: 1, Y: 1},
		To:      engine.Anchor{X: 2, Y: 1},
	})
	if err != nil {
		t.Fatalf("Animate failed: %v", err)
	}

	// 160ms at 16ms per frame, plus one for float rounding
	if len(frames) < 10 || len(frames) > 11 {
		t.Errorf("Expected 10 frames, got %d", len(frames))
	}
	if len(*slept) != len(frames)-1 {
		t.Errorf("Expected a sleep between frames, got %d", len(*slept))
	}

	last := frames[len(frames)-1]
	if !last.Done {
		t.Error("Expected the last frame to be done")
	}
	if !near(last.Position.X, 2) || !near(last.Position.Y, 1) {
		t.Errorf("Expected to end at (2,1), got %+v", last.Position)
	}
	if !near(last.Scale, 1) || !near(last.Opacity, 1) {
		t.Errorf("Expected a move to keep scale and opacity, got %f/%f", last.Scale, last.Opacity)
	}

	for i := 1; i < len(frames); i++ {
		if frames[i].Position.X < frames[i-1].Position.X {
			t.Errorf("Expected monotonic progress, frame %d went back", i)
		}
		if frames[i].Subject != "robot" {
			t.Errorf("Expected subject robot, got %s", frames[i].Subject)
		}
	}
	if frames[0].Position.X >= 1.5 {
		t.Errorf("Expected a slow start with in-out easing, got %f", frames[0].Position.X)
	}
}

func TestAnimate_FallShrinksAndFades(t *testing.T) {
	var last Frame
	a, _ := instant(func(f Frame) { last = f })

	err := a.Animate(context.Background(), engine.Animation{
		Kind: engine.AnimateFall,
		From: engine.Anchor{X: 0, Y: 0},
		To:   engine.Anchor{X: 0, Y: 3},
	})
	if err != nil {
		t.Fatalf("Animate failed: %v", err)
	}
	if !near(last.Scale, fallScale) || !near(last.Opacity, 0) {
		t.Errorf("Expected scale %v and opacity 0, got %f/%f", fallScale, last.Scale, last.Opacity)
	}
	if !near(last.Position.Y, 3) {
		t.Errorf("Expected to end at y=3, got %f", last.Position.Y)
	}
}

func TestAnimate_Delay(t *testing.T) {
	a, slept := instant(nil)

	if err := a.Animate(context.Background(), engine.Animation{Kind: engine.AnimateMove, Delay: 50 * time.Millisecond}); err != nil {
		t.Fatalf("Animate failed: %v", err)
	}
	if len(*slept) == 0 || (*slept)[0] != 50*time.Millisecond {
		t.Errorf("Expected to wait 50ms first, got %v", *slept)
	}
}

func TestAnimate_Errors(t *testing.T) {
	a, _ := instant(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Animate(ctx, engine.Animation{Kind: engine.AnimateMove}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if err := a.Animate(context.Background(), engine.Animation{Kind: "spin"}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestAnimate_RealTimer(t *testing.T) {
	a := NewTweenAnimator(nil)
	a.Duration = 20 * time.Millisecond
	a.FrameInterval = 5 * time.Millisecond

	start := time.Now()
	if err := a.Animate(context.Background(), engine.Animation{Kind: engine.AnimateMove}); err != nil {
		t.Fatalf("Animate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("Expected the animation to take time, took %v", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	a.Duration = time.Second
	if err := a.Animate(ctx, engine.Animation{Kind: engine.AnimateMove}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestAnimate_DrivesMatch(t *testing.T) {
	var frames int
	a, _ := instant(func(Frame) { frames++ })

	m := engine.NewMatch(
		engine.WithAnimator(a),
		engine.WithScheduler(engine.NewManualScheduler()),
		engine.WithSession(engine.StaticSession{Name: "adam", Key: "key"}),
	)
	defer m.Close()

	player, err := m.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, dir := range engine.Directions {
		outcome, err := m.Move(context.Background(), player, dir)
		if err != nil {
			t.Fatalf("Move failed: %v", err)
		}
		if outcome == engine.OutcomeMoved && frames == 0 {
			t.Fatal("Expected frames for a move")
		}
	}
}
