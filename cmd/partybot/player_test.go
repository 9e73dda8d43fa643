package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockPlayer(t *testing.T) {
	p := &clockPlayer{}
	p.Seek(10)
	assert.Equal(t, 10.0, p.Position())

	p.Play()
	time.Sleep(20 * time.Millisecond)
	assert.Greater(t, p.Position(), 10.0)

	p.Pause()
	paused := p.Position()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, paused, p.Position())
	assert.False(t, p.IsPlaying())
}
