package audio

import (
	"math"
	"math/rand"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// Wave selects an oscillator shape
type Wave int

const (
	Sine Wave = iota
	Square
	Saw
	Noise
)

// tone generates a fixed-frequency wave for a fixed number of samples
type tone struct {
	freq     float64
	phase    float64
	length   int
	position int
	wave     Wave
	rate     beep.SampleRate
	rng      *rand.Rand
}

// Tone returns a streamer playing one wave for d
func Tone(freq float64, d time.Duration, wave Wave, rate beep.SampleRate) beep.Streamer {
	return &tone{
		freq:   freq,
		length: rate.N(d),
		wave:   wave,
		rate:   rate,
		rng:    rand.New(rand.NewSource(int64(freq*1000) + int64(d))),
	}
}

func (o *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.length {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case Sine:
			val = math.Sin(2 * math.Pi * o.phase)
		case Square:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case Saw:
			val = 2.0 * (o.phase - 0.5)
		case Noise:
			val = o.rng.Float64()*2 - 1
		}

		samples[i][0] = val
		samples[i][1] = val

		o.phase += o.freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *tone) Err() error { return nil }

// envelope fades a stream in over attack and out over release
type envelope struct {
	streamer beep.Streamer
	position int
	attack   int
	release  int
	total    int
}

// Shape applies a linear attack and release to s, which lasts d
func Shape(s beep.Streamer, d, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	return &envelope{
		streamer: s,
		attack:   rate.N(attack),
		release:  rate.N(release),
		total:    rate.N(d),
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)

	for i := 0; i < n; i++ {
		if e.position >= e.total {
			return i, i > 0
		}

		vol := 1.0
		if e.attack > 0 && e.position < e.attack {
			vol = float64(e.position) / float64(e.attack)
		}
		if releaseStart := e.total - e.release; e.release > 0 && e.position >= releaseStart {
			vol = math.Max(0, float64(e.total-e.position)/float64(e.release))
		}

		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// volume scales s linearly. Zero or less is silent.
func volume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol)}
}

// note is a shaped tone with short click-free edges
func note(freq float64, d time.Duration, wave Wave, rate beep.SampleRate) beep.Streamer {
	edge := d / 8
	return Shape(Tone(freq, d, wave, rate), d, edge, edge, rate)
}

// melody plays notes back to back
func melody(freqs []float64, d time.Duration, wave Wave, rate beep.SampleRate) beep.Streamer {
	notes := make([]beep.Streamer, len(freqs))
	for i, f := range freqs {
		notes[i] = note(f, d, wave, rate)
	}
	return beep.Seq(notes...)
}

// rest is silence for d
func rest(d time.Duration, rate beep.SampleRate) beep.Streamer {
	return beep.Silence(rate.N(d))
}
