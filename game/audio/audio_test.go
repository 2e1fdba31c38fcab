package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

const testRate = beep.SampleRate(8000)

// drain streams s to the end and returns the number of samples and the peak amplitude
func drain(t *testing.T, s beep.Streamer) (int, float64) {
	t.Helper()
	buf := make([][2]float64, 512)
	total, peak := 0, 0.0
	for i := 0; i < 10000; i++ {
		n, ok := s.Stream(buf)
		for _, sample := range buf[:n] {
			for _, v := range sample {
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
		}
		total += n
		if !ok {
			return total, peak
		}
	}
	t.Fatal("Stream did not end")
	return 0, 0
}

func TestTone(t *testing.T) {
	for _, wave := range []Wave{Sine, Square, Saw, Noise} {
		s := Tone(440, 100*time.Millisecond, wave, testRate)
		n, peak := drain(t, s)
		if n != testRate.N(100*time.Millisecond) {
			t.Errorf("Wave %d: expected %d samples, got %d", wave, testRate.N(100*time.Millisecond), n)
		}
		if peak > 1.0 || peak == 0 {
			t.Errorf("Wave %d: unexpected peak %f", wave, peak)
		}
		if s.Err() != nil {
			t.Errorf("Wave %d: unexpected error %v", wave, s.Err())
		}
	}
}

func TestShapeFadesEdges(t *testing.T) {
	d := 100 * time.Millisecond
	s := Shape(Tone(0, d, Square, testRate), d, 10*time.Millisecond, 10*time.Millisecond, testRate)

	buf := make([][2]float64, testRate.N(d))
	n, _ := s.Stream(buf)
	if n != len(buf) {
		t.Fatalf("Expected %d samples, got %d", len(buf), n)
	}
	if buf[0][0] != 0 {
		t.Errorf("Expected silent first sample, got %f", buf[0][0])
	}
	if mid := buf[n/2][0]; mid != 1 {
		t.Errorf("Expected full volume mid-stream, got %f", mid)
	}
	if last := buf[n-1][0]; last <= 0 || last > 0.2 {
		t.Errorf("Expected faded last sample, got %f", last)
	}
}

func TestSynthesizeEveryCue(t *testing.T) {
	for _, cue := range engine.AllCues {
		t.Run(string(cue), func(t *testing.T) {
			s := Synthesize(cue, testRate)
			if s == nil {
				t.Fatal("Expected a sound")
			}
			n, peak := drain(t, s)
			if n == 0 {
				t.Error("Expected samples")
			}
			if peak > 1.0 {
				t.Errorf("Expected samples within [-1, 1], peak %f", peak)
			}
		})
	}

	if Synthesize(engine.Cue("unknown"), testRate) != nil {
		t.Error("Expected nil for unknown cue")
	}
}

func TestCountdownFitsTheDelay(t *testing.T) {
	n, _ := drain(t, Synthesize(engine.CueCountdown, testRate))
	limit := engine.DefaultRules().DestroyedRegenDelay() - engine.DefaultRules().CountdownCueDelay()
	if got := testRate.D(n); got > limit {
		t.Errorf("Expected countdown within %v, got %v", limit, got)
	}
}

type recordingOutput struct {
	mu      sync.Mutex
	streams []beep.Streamer
}

func (o *recordingOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streams = append(o.streams, s)
}

func (o *recordingOutput) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.streams)
}

func TestCuePlayer(t *testing.T) {
	out := &recordingOutput{}
	player := NewCuePlayer(out, 0)

	player.Play(engine.CueBleep)
	player.Play(engine.Cue("unknown"))
	if out.count() != 1 {
		t.Fatalf("Expected 1 stream, got %d", out.count())
	}

	player.SetMuted(true)
	player.Play(engine.CueExplosion)
	if out.count() != 1 {
		t.Error("Expected muted player to stay silent")
	}

	player.SetMuted(false)
	player.Play(engine.CueExplosion)
	if out.count() != 2 {
		t.Errorf("Expected 2 streams, got %d", out.count())
	}
}

func TestSpeakerIgnoresPlayBeforeInitialize(t *testing.T) {
	s := NewSpeaker(0)
	if s.Rate() != DefaultSampleRate {
		t.Errorf("Expected default rate, got %d", s.Rate())
	}
	s.Play(Synthesize(engine.CueBleep, s.Rate()))
	s.Close()
}
