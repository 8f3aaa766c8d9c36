package audio

import (
	"time"

	"github.com/d60-Lab/void-feed/internal/model"
)

type step struct {
	at   time.Duration
	tone Tone
}

func tone(freq float64, ms int, w Waveform, vol float64) Tone {
	return Tone{Frequency: freq, Duration: time.Duration(ms) * time.Millisecond, Waveform: w, Volume: vol}
}

func at(ms int, t Tone) step { return step{at: time.Duration(ms) * time.Millisecond, tone: t} }

var deleteSequences = map[model.Variant][]step{
	// falling two-tone sweep
	model.VariantSlide: {
		at(0, tone(800, 300, Sawtooth, 0.05)),
		at(100, tone(400, 200, Sawtooth, 0.03)),
	},
	// three low bursts
	model.VariantExplode: {
		at(0, tone(200, 100, Square, 0.08)),
		at(50, tone(150, 100, Square, 0.06)),
		at(100, tone(100, 100, Square, 0.04)),
	},
	model.VariantFade: {
		at(0, tone(600, 500, Sine, 0.04)),
		at(200, tone(400, 300, Sine, 0.03)),
	},
	// rapid descending stutter
	model.VariantGlitch: {
		at(0, tone(1000, 50, Square, 0.06)),
		at(50, tone(800, 50, Square, 0.05)),
		at(100, tone(600, 50, Square, 0.04)),
		at(150, tone(400, 100, Sawtooth, 0.03)),
	},
}

var (
	hoverSequence   = []step{at(0, tone(1200, 100, Sine, 0.02))}
	clickSequence   = []step{at(0, tone(800, 50, Square, 0.03)), at(25, tone(600, 50, Square, 0.02))}
	errorSequence   = []step{at(0, tone(200, 200, Square, 0.06)), at(100, tone(150, 200, Square, 0.05))}
	successSequence = []step{
		at(0, tone(523, 100, Sine, 0.04)), // C5
		at(100, tone(659, 100, Sine, 0.04)),
		at(200, tone(784, 200, Sine, 0.04)),
	}
)

func (s *Synthesizer) sequence(steps []step) {
	for _, st := range steps {
		s.schedule(st.at, st.tone)
	}
}

// PlayDeleteSound plays the signature of v; unknown variants fall back to slide.
func (s *Synthesizer) PlayDeleteSound(v model.Variant) {
	steps, ok := deleteSequences[v]
	if !ok {
		steps = deleteSequences[model.VariantSlide]
	}
	s.sequence(steps)
}

func (s *Synthesizer) PlayHoverSound()   { s.sequence(hoverSequence) }
func (s *Synthesizer) PlayClickSound()   { s.sequence(clickSequence) }
func (s *Synthesizer) PlayErrorSound()   { s.sequence(errorSequence) }
func (s *Synthesizer) PlaySuccessSound() { s.sequence(successSequence) }
