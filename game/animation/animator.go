package animation

import (
	"context"
	"fmt"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

const (
	DefaultDuration      = 160 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
	fallScale            = 0.5
)

// Frame is one rendered step of an animation
type Frame struct {
	Subject  string               `json:"subject"`
	Kind     engine.AnimationKind `json:"kind"`
	Position engine.Anchor        `json:"position"`
	Scale    float64              `json:"scale"`
	Opacity  float64              `json:"opacity"`
	Done     bool                 `json:"done"`
}

// Sink receives frames as they are produced. It must not block for long.
type Sink func(Frame)

// TweenAnimator plays engine animations as eased tweens and reports each frame
// to a sink. It implements engine.Animator.
type TweenAnimator struct {
	Duration      time.Duration
	FrameInterval time.Duration
	Easing        ease.TweenFunc
	sink          Sink
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewTweenAnimator creates an animator with the default timing and easing
func NewTweenAnimator(sink Sink) *TweenAnimator {
	return &TweenAnimator{
		Duration:      DefaultDuration,
		FrameInterval: DefaultFrameInterval,
		Easing:        ease.InOutQuint,
		sink:          sink,
		sleep:         sleep,
	}
}

// Animate waits for the animation delay, then plays it to completion or until ctx is done
func (a *TweenAnimator) Animate(ctx context.Context, anim engine.Animation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if anim.Kind != engine.AnimateMove && anim.Kind != engine.AnimateFall {
		return fmt.Errorf("unknown animation kind %q", anim.Kind)
	}
	if anim.Delay > 0 {
		if err := a.sleep(ctx, anim.Delay); err != nil {
			return err
		}
	}

	duration := float32(a.Duration.Seconds())
	tweens := a.tweens(anim, duration)

	step := a.FrameInterval
	if step <= 0 {
		step = DefaultFrameInterval
	}

	for {
		values, finished := update(tweens, float32(step.Seconds()))
		frame := Frame{
			Subject:  anim.Subject,
			Kind:     anim.Kind,
			Position: engine.Anchor{X: values[0], Y: values[1]},
			Scale:    values[2],
			Opacity:  values[3],
			Done:     finished,
		}
		if a.sink != nil {
			a.sink(frame)
		}
		if finished {
			return nil
		}
		if err := a.sleep(ctx, step); err != nil {
			return err
		}
	}
}

// tweens returns x, y, scale and opacity tweens for anim
func (a *TweenAnimator) tweens(anim engine.Animation, duration float32) [4]*gween.Tween {
	easing := a.Easing
	if easing == nil {
		easing = ease.InOutQuint
	}

	endScale, endOpacity := float32(1), float32(1)
	if anim.Kind == engine.AnimateFall {
		endScale, endOpacity = fallScale, 0
	}

	return [4]*gween.Tween{
		gween.New(float32(anim.From.X), float32(anim.To.X), duration, easing),
		gween.New(float32(anim.From.Y), float32(anim.To.Y), duration, easing),
		gween.New(1, endScale, duration, easing),
		gween.New(1, endOpacity, duration, easing),
	}
}

func update(tweens [4]*gween.Tween, dt float32) ([4]float64, bool) {
	var values [4]float64
	finished := true
	for i, t := range tweens {
		v, done := t.Update(dt)
		values[i] = float64(v)
		finished = finished && done
	}
	return values, finished
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
