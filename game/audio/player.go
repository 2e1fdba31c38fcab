package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
)

// DefaultSampleRate is used when no rate is configured
const DefaultSampleRate = beep.SampleRate(44100)

// Output receives finished cue streams
type Output interface {
	Play(s beep.Streamer)
}

// CuePlayer turns engine cues into synthesized sound. It implements engine.AudioPlayer.
type CuePlayer struct {
	out   Output
	rate  beep.SampleRate
	mu    sync.Mutex
	muted bool
}

// NewCuePlayer creates a player writing to out at rate
func NewCuePlayer(out Output, rate beep.SampleRate) *CuePlayer {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &CuePlayer{out: out, rate: rate}
}

// Play implements engine.AudioPlayer
func (p *CuePlayer) Play(cue engine.Cue) {
	p.mu.Lock()
	muted := p.muted
	p.mu.Unlock()
	if muted {
		return
	}

	s := Synthesize(cue, p.rate)
	if s == nil {
		log.WithField("cue", cue).Debug("no sound for cue")
		return
	}
	p.out.Play(s)
}

// SetMuted silences or restores cue playback
func (p *CuePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = muted
}

// Speaker plays streams on the system audio device through a shared mixer
type Speaker struct {
	mu          sync.Mutex
	rate        beep.SampleRate
	mixer       *beep.Mixer
	initialized bool
}

// NewSpeaker creates a speaker output. Call Initialize before playing.
func NewSpeaker(rate beep.SampleRate) *Speaker {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	return &Speaker{rate: rate, mixer: &beep.Mixer{}}
}

// Initialize opens the audio device
func (s *Speaker) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := speaker.Init(s.rate, s.rate.N(100*time.Millisecond)); err != nil {
		return err
	}

	speaker.Play(s.mixer)
	s.initialized = true
	return nil
}

// Play adds a stream to the mixer. It does nothing before Initialize.
func (s *Speaker) Play(stream beep.Streamer) {
	s.mu.Lock()
	initialized := s.initialized
	s.mu.Unlock()
	if !initialized {
		return
	}

	speaker.Lock()
	s.mixer.Add(stream)
	speaker.Unlock()
}

// Close stops every playing stream
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return
	}
	speaker.Clear()
	s.initialized = false
}

// Rate returns the output sample rate
func (s *Speaker) Rate() beep.SampleRate {
	return s.rate
}
