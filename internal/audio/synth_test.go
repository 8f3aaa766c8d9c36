package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/void-feed/internal/model"
)

const testRate = 8000

type fakeBackend struct {
	mu     sync.Mutex
	played [][]byte
	closed bool
	opens  int
}

func (f *fakeBackend) Play(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, pcm)
	return nil
}

func (f *fakeBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

func (f *fakeBackend) durations() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.played))
	for i, p := range f.played {
		out[i] = time.Duration(len(p)/2) * time.Second / testRate
	}
	return out
}

func newTestSynth(t *testing.T, fb *fakeBackend) *Synthesizer {
	t.Helper()
	s := NewSynthesizer(WithSampleRate(testRate), WithBackendFactory(func(int) (Backend, error) {
		fb.mu.Lock()
		fb.opens++
		fb.mu.Unlock()
		return fb, nil
	}))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRender_LengthAndBounds(t *testing.T) {
	pcm := Render(tone(440, 100, Square, 0.5), testRate)
	require.Len(t, pcm, testRate/10*2)

	first := int16(binary.LittleEndian.Uint16(pcm[0:]))
	assert.Equal(t, int16(0), first, "attack starts silent")

	limit := int16(math.MaxInt16/2) + 1
	for i := 0; i < len(pcm); i += 2 {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		assert.LessOrEqual(t, v, limit)
		assert.GreaterOrEqual(t, v, -limit)
	}
}

func TestRender_Decays(t *testing.T) {
	pcm := Render(tone(200, 200, Square, 0.5), testRate)
	peak := func(from, to int) int16 {
		var m int16
		for i := from; i < to; i += 2 {
			v := int16(binary.LittleEndian.Uint16(pcm[i:]))
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		return m
	}
	n := len(pcm)
	assert.Greater(t, peak(0, n/4), peak(3*n/4, n))
}

func TestRender_Empty(t *testing.T) {
	assert.Nil(t, Render(tone(440, 0, Sine, 0.1), testRate))
	assert.Nil(t, Render(tone(440, 100, Sine, 0.1), 0))
}

func TestOscillate(t *testing.T) {
	assert.InDelta(t, 0, oscillate(Sine, 0), 1e-9)
	assert.InDelta(t, 1, oscillate(Sine, 0.25), 1e-9)
	assert.Equal(t, 1.0, oscillate(Square, 0.1))
	assert.Equal(t, -1.0, oscillate(Square, 0.6))
	assert.InDelta(t, -1, oscillate(Sawtooth, 0), 1e-9)
	assert.InDelta(t, 1, oscillate(Triangle, 0.5), 1e-9)
}

func TestPlayDeleteSound_Signatures(t *testing.T) {
	cases := map[model.Variant][]time.Duration{
		model.VariantSlide:   {300 * time.Millisecond, 200 * time.Millisecond},
		model.VariantExplode: {100 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond},
		model.VariantFade:    {500 * time.Millisecond, 300 * time.Millisecond},
		model.VariantGlitch:  {50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond},
	}
	for v, want := range cases {
		v, want := v, want
		t.Run(string(v), func(t *testing.T) {
			fb := &fakeBackend{}
			s := newTestSynth(t, fb)

			s.PlayDeleteSound(v)

			require.Eventually(t, func() bool { return fb.count() == len(want) }, 2*time.Second, 5*time.Millisecond)
			assert.ElementsMatch(t, want, fb.durations())
		})
	}
}

func TestPlayTone_Disabled(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestSynth(t, fb)
	s.SetEnabled(false)

	s.PlayTone(440, 50*time.Millisecond, Sine, 0.1)
	s.PlaySuccessSound()

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, fb.count())
	assert.Zero(t, fb.opens, "backend is opened lazily")
}

func TestDisable_SilencesPendingSteps(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestSynth(t, fb)

	s.PlayDeleteSound(model.VariantFade) // second step at +200ms
	s.SetEnabled(false)

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, fb.count())
}

func TestToggle(t *testing.T) {
	s := NewSynthesizer(WithEnabled(false), WithBackendFactory(func(int) (Backend, error) { return &fakeBackend{}, nil }))
	assert.False(t, s.Enabled())
	assert.True(t, s.Toggle())
	assert.False(t, s.Toggle())
}

func TestBackendFailureIsSwallowed(t *testing.T) {
	calls := 0
	s := NewSynthesizer(WithBackendFactory(func(int) (Backend, error) {
		calls++
		return nil, errors.New("no audio device")
	}))

	assert.NotPanics(t, func() {
		s.PlayErrorSound()
		s.PlayClickSound()
		s.PlayHoverSound()
	})
	require.NoError(t, s.Close())
	assert.Equal(t, 1, calls)
}

func TestDefaultSynthesizerHasNoDevice(t *testing.T) {
	s := NewSynthesizer()

	assert.NotPanics(t, func() {
		s.PlaySuccessSound()
		s.PlayDeleteSound(model.VariantExplode)
	})
	_, err := s.device()
	assert.ErrorIs(t, err, ErrNoBackend)
	require.NoError(t, s.Close())
}

func TestClose_CancelsScheduledSteps(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestSynth(t, fb)

	s.PlayDeleteSound(model.VariantGlitch)
	require.NoError(t, s.Close())

	assert.LessOrEqual(t, fb.count(), 1)
	assert.True(t, fb.closed)

	s.PlayHoverSound()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, fb.count(), 1)
}
