package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/pkg/logger"
)

var errClosed = errors.New("synthesizer closed")

// Synthesizer is the process-wide sound service. The backend is opened on the first
// tone and released by Close. Every Play* call returns immediately.
type Synthesizer struct {
	sampleRate int
	factory    BackendFactory
	enabled    atomic.Bool

	initOnce sync.Once
	backend  Backend
	initErr  error

	mu     sync.Mutex
	closed bool
	timers map[*time.Timer]struct{}
	wg     sync.WaitGroup
}

type Option func(*Synthesizer)

// WithBackendFactory sets the output device opened on the first tone. Without it every
// tone is dropped silently.
func WithBackendFactory(f BackendFactory) Option {
	return func(s *Synthesizer) { s.factory = f }
}

func WithSampleRate(rate int) Option {
	return func(s *Synthesizer) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithEnabled sets the initial state of the enable flag.
func WithEnabled(on bool) Option {
	return func(s *Synthesizer) { s.enabled.Store(on) }
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		sampleRate: 44100,
		factory:    noBackend,
		timers:     make(map[*time.Timer]struct{}),
	}
	s.enabled.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synthesizer) SetEnabled(on bool) { s.enabled.Store(on) }

func (s *Synthesizer) Enabled() bool { return s.enabled.Load() }

// Toggle flips the enable flag and returns the new value.
func (s *Synthesizer) Toggle() bool {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// PlayTone fires a single tone asynchronously. Failures are logged, never returned.
func (s *Synthesizer) PlayTone(frequency float64, duration time.Duration, waveform Waveform, volume float64) {
	s.play(Tone{Frequency: frequency, Duration: duration, Waveform: waveform, Volume: volume})
}

func (s *Synthesizer) play(t Tone) {
	if !s.enabled.Load() {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("tone playback panicked", zap.Any("panic", r))
			}
		}()
		b, err := s.device()
		if err != nil {
			return
		}
		if err := b.Play(Render(t, s.sampleRate)); err != nil {
			logger.Debug("tone playback failed",
				zap.Float64("frequency", t.Frequency),
				zap.Stringer("waveform", t.Waveform),
				zap.Error(err))
		}
	}()
}

// schedule plays t after delay unless the synthesizer is closed first. The enable flag
// is checked when the timer fires, so disabling silences steps that have not started.
func (s *Synthesizer) schedule(delay time.Duration, t Tone) {
	if delay <= 0 {
		s.play(t)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		s.play(t)
	})
	s.timers[timer] = struct{}{}
}

func (s *Synthesizer) device() (Backend, error) {
	s.initOnce.Do(func() {
		s.backend, s.initErr = s.factory(s.sampleRate)
		if s.initErr != nil {
			logger.Warn("audio backend unavailable, sounds disabled", zap.Error(s.initErr))
		}
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.backend, nil
}

// Close cancels scheduled steps, waits for tones already playing and releases the device.
func (s *Synthesizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.mu.Unlock()

	s.wg.Wait()

	// Prevent a late first use from opening the device after teardown.
	s.initOnce.Do(func() { s.initErr = errClosed })
	if s.backend != nil {
		if err := s.backend.Close(); err != nil {
			return fmt.Errorf("close audio backend: %w", err)
		}
	}
	return nil
}
