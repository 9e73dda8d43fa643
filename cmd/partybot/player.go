package main

import (
	"sync"
	"time"
)

// clockPlayer stands in for a media player: while playing its position
// advances with the wall clock.
type clockPlayer struct {
	mu        sync.Mutex
	position  float64
	since     time.Time
	isPlaying bool
}

func (p *clockPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *clockPlayer) positionLocked() float64 {
	if !p.isPlaying {
		return p.position
	}
	return p.position + time.Since(p.since).Seconds()
}

func (p *clockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isPlaying
}

func (p *clockPlayer) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	p.since = time.Now()
}

func (p *clockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isPlaying {
		p.since = time.Now()
		p.isPlaying = true
	}
}

func (p *clockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isPlaying {
		p.position = p.positionLocked()
		p.isPlaying = false
	}
}
