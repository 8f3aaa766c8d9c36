package audio

import "errors"

// ErrNoBackend is returned by the default factory when no output device was injected.
var ErrNoBackend = errors.New("audio: no output backend configured")

// Backend plays raw PCM on an output device. Play blocks until the buffer is drained.
type Backend interface {
	Play(pcm []byte) error
	Close() error
}

// BackendFactory opens a backend for mono 16-bit PCM at sampleRate.
type BackendFactory func(sampleRate int) (Backend, error)

func noBackend(int) (Backend, error) { return nil, ErrNoBackend }
