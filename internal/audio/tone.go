package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Waveform oscillator shape.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	case Triangle:
		return "triangle"
	default:
		return "sine"
	}
}

// Tone is one oscillator burst.
type Tone struct {
	Frequency float64
	Duration  time.Duration
	Waveform  Waveform
	Volume    float64
}

const (
	attack   = 10 * time.Millisecond
	decayEnd = 0.001
)

// Render produces mono signed 16-bit little-endian PCM for t.
// The envelope ramps linearly from 0 to Volume over the first 10ms and then decays
// exponentially to 0.001 at Duration.
func Render(t Tone, sampleRate int) []byte {
	n := int(math.Round(t.Duration.Seconds() * float64(sampleRate)))
	if n <= 0 || sampleRate <= 0 {
		return nil
	}
	vol := math.Max(0, math.Min(1, t.Volume))
	out := make([]byte, n*2)

	total := t.Duration.Seconds()
	atk := math.Min(attack.Seconds(), total)
	for i := 0; i < n; i++ {
		sec := float64(i) / float64(sampleRate)
		s := oscillate(t.Waveform, t.Frequency*sec) * envelope(sec, atk, total, vol)
		s = math.Max(-1, math.Min(1, s))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}

func envelope(sec, atk, total, vol float64) float64 {
	if sec < atk {
		return vol * sec / atk
	}
	if vol <= decayEnd || total <= atk {
		return vol
	}
	progress := (sec - atk) / (total - atk)
	return vol * math.Pow(decayEnd/vol, progress)
}

// oscillate evaluates the waveform at the given number of elapsed cycles.
func oscillate(w Waveform, cycles float64) float64 {
	frac := cycles - math.Floor(cycles)
	switch w {
	case Square:
		if frac < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*frac - 1
	case Triangle:
		return 1 - 4*math.Abs(frac-0.5)
	default:
		return math.Sin(2 * math.Pi * cycles)
	}
}
