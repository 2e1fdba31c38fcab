package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAnchorNotFound means an object or cell has no on-screen position
var ErrAnchorNotFound = errors.New("anchor not found")

// ErrMissingSession means the session provider has no signed-in user
var ErrMissingSession = errors.New("missing session")

// Anchor is a presentation-space position of an object or a cell
type Anchor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AnimationKind selects the motion played for a move
type AnimationKind string

const (
	// AnimateMove slides the subject between two anchors
	AnimateMove AnimationKind = "move"
	// AnimateFall slides, shrinks and fades the subject into the crusher
	AnimateFall AnimationKind = "fall"
)

// Animation describes one tween the presentation layer should play
type Animation struct {
	Kind    AnimationKind
	Subject string
	From    Anchor
	To      Anchor
	Delay   time.Duration
}

// Animator plays animations. Animate returns once the animation has completed.
type Animator interface {
	Animate(ctx context.Context, animation Animation) error
}

// AnchorResolver maps objects and cells to presentation anchors
type AnchorResolver interface {
	ObjectAnchor(g *Grid, obj *Object) (Anchor, error)
	CellAnchor(g *Grid, index int) (Anchor, error)
}

// Cue names a sound effect or track
type Cue string

const (
	CueRobotMoves      Cue = "robot-moves"
	CueRobotJump       Cue = "robot-jump"
	CueRobotPushed     Cue = "robot-pushed"
	CueRejection       Cue = "rejection"
	CueCountdown       Cue = "countdown"
	CuePlayerDestroyed Cue = "player-destroyed"
	CueFellInCrusher   Cue = "fell-in-crusher"
	CueExplosion       Cue = "explosion"
	CueEnemySpawn      Cue = "enemy-spawn"
	CueIntroTrack      Cue = "intro-track"
	CueBleep           Cue = "bleep"
)

// AllCues lists every cue the engine can request
var AllCues = []Cue{
	CueRobotMoves, CueRobotJump, CueRobotPushed, CueRejection, CueCountdown, CuePlayerDestroyed,
	CueFellInCrusher, CueExplosion, CueEnemySpawn, CueIntroTrack, CueBleep,
}

// AudioPlayer plays cues without blocking the caller
type AudioPlayer interface {
	Play(cue Cue)
}

// SessionProvider supplies the identity of the signed-in player
type SessionProvider interface {
	Username() (string, error)
	Credential() (string, error)
}

// GridAnchors uses cell coordinates as anchors
type GridAnchors struct{}

// ObjectAnchor implements AnchorResolver
func (GridAnchors) ObjectAnchor(g *Grid, obj *Object) (Anchor, error) {
	if obj == nil {
		return Anchor{}, fmt.Errorf("%w: nil object", ErrAnchorNotFound)
	}
	index, ok := obj.CellIndex()
	if !ok {
		return Anchor{}, fmt.Errorf("%w: object %s is not placed", ErrAnchorNotFound, obj.ID)
	}
	return GridAnchors{}.CellAnchor(g, index)
}

// CellAnchor implements AnchorResolver
func (GridAnchors) CellAnchor(g *Grid, index int) (Anchor, error) {
	if g == nil || index < 0 || index >= g.CellCount() {
		return Anchor{}, fmt.Errorf("%w: cell %d", ErrAnchorNotFound, index)
	}
	c := g.CoordsFromIndex(index)
	return Anchor{X: float64(c.X), Y: float64(c.Y)}, nil
}

// NopAnimator completes every animation immediately
type NopAnimator struct{}

// Animate implements Animator
func (NopAnimator) Animate(ctx context.Context, _ Animation) error {
	return ctx.Err()
}

// NopAudio discards cues
type NopAudio struct{}

// Play implements AudioPlayer
func (NopAudio) Play(Cue) {}

// StaticSession is a SessionProvider with fixed values
type StaticSession struct {
	Name string
	Key  string
}

// Username implements SessionProvider
func (s StaticSession) Username() (string, error) {
	if s.Name == "" {
		return "", fmt.Errorf("%w: username", ErrMissingSession)
	}
	return s.Name, nil
}

// Credential implements SessionProvider
func (s StaticSession) Credential() (string, error) {
	if s.Key == "" {
		return "", fmt.Errorf("%w: credential", ErrMissingSession)
	}
	return s.Key, nil
}
