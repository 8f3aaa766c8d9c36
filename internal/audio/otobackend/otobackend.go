// Package otobackend plays synthesized PCM through the system audio device.
package otobackend

import (
	"bytes"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/d60-Lab/void-feed/internal/audio"
)

var _ audio.Backend = (*player)(nil)

type player struct {
	ctx *oto.Context
}

// New opens the default audio device. oto allows a single context per process,
// so callers must open it at most once.
func New(sampleRate int) (audio.Backend, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &player{ctx: ctx}, nil
}

func (b *player) Play(pcm []byte) error {
	p := b.ctx.NewPlayer(bytes.NewReader(pcm))
	p.Play()
	for p.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return p.Close()
}

func (b *player) Close() error {
	return b.ctx.Suspend()
}
