package audio

import (
	"time"

	"github.com/gopxl/beep"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

// Note frequencies used by the cues
const (
	noteC4 = 261.63
	noteE4 = 329.63
	noteG4 = 392.00
	noteA4 = 440.00
	noteC5 = 523.25
	noteE5 = 659.25
	noteG5 = 783.99
	noteA5 = 880.00
)

// Synthesize builds the streamer for a cue. Unknown cues return nil.
func Synthesize(cue engine.Cue, rate beep.SampleRate) beep.Streamer {
	switch cue {
	case engine.CueRobotMoves:
		return volume(note(noteE4, 60*time.Millisecond, Square, rate), 0.3)

	case engine.CueRobotJump:
		return volume(melody([]float64{noteA4, noteE5, noteA5}, 40*time.Millisecond, Sine, rate), 0.4)

	case engine.CueRobotPushed:
		return volume(note(150, 120*time.Millisecond, Saw, rate), 0.4)

	case engine.CueRejection:
		d := 150 * time.Millisecond
		return volume(Shape(Tone(100, d, Saw, rate), d, 5*time.Millisecond, 60*time.Millisecond, rate), 0.4)

	case engine.CueCountdown:
		// Three beeps a second apart, the last one higher
		beep1 := note(noteE5, 100*time.Millisecond, Square, rate)
		beep2 := note(noteE5, 100*time.Millisecond, Square, rate)
		beep3 := note(noteA5, 250*time.Millisecond, Square, rate)
		gap := 900 * time.Millisecond
		return volume(beep.Seq(beep1, rest(gap, rate), beep2, rest(gap, rate), beep3), 0.3)

	case engine.CuePlayerDestroyed:
		return volume(melody([]float64{noteA4, noteG4, noteE4, noteC4, noteC4 / 2}, 150*time.Millisecond, Square, rate), 0.35)

	case engine.CueFellInCrusher:
		d := 500 * time.Millisecond
		grind := Shape(Tone(0, d, Noise, rate), d, 10*time.Millisecond, 300*time.Millisecond, rate)
		drop := melody([]float64{noteC5, noteG4, noteE4, noteC4}, d/4, Saw, rate)
		return volume(beep.Mix(volume(grind, 0.5), volume(drop, 0.5)), 0.5)

	case engine.CueExplosion:
		d := 400 * time.Millisecond
		noise := Shape(Tone(0, d, Noise, rate), d, 5*time.Millisecond, 350*time.Millisecond, rate)
		rumble := Shape(Tone(60, d, Sine, rate), d, 5*time.Millisecond, 300*time.Millisecond, rate)
		return volume(beep.Mix(volume(noise, 0.6), volume(rumble, 0.4)), 0.6)

	case engine.CueEnemySpawn:
		d := 300 * time.Millisecond
		fundamental := Shape(Tone(noteA5, d, Sine, rate), d, 5*time.Millisecond, 250*time.Millisecond, rate)
		overtone := Shape(Tone(noteA5*1.5, d, Sine, rate), d, 5*time.Millisecond, 150*time.Millisecond, rate)
		return volume(beep.Mix(volume(fundamental, 0.7), volume(overtone, 0.3)), 0.4)

	case engine.CueIntroTrack:
		phrase := []float64{noteC4, noteE4, noteG4, noteC5, noteE5, noteG5, noteE5, noteC5}
		lead := melody(append(append([]float64{}, phrase...), phrase...), 120*time.Millisecond, Square, rate)
		return volume(lead, 0.25)

	case engine.CueBleep:
		return volume(note(1000, 50*time.Millisecond, Sine, rate), 0.3)
	}
	return nil
}
