// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fake provides a scriptable hostaudio.Primitive for tests.
package fake

import (
	"context"
	"sync"

	"github.com/ManuGH/radiosync/internal/hostaudio"
)

// Primitive records every call and emits events on demand.
type Primitive struct {
	mu       sync.Mutex
	source   string
	paused   bool
	current  float64
	rate     float64
	volume   float64
	muted    bool
	ready    hostaudio.ReadyState
	buffered []hostaudio.Range
	playErr  error
	trimmed  []float64
	calls    []string
	sources  []string
	events   chan hostaudio.Event
}

// New returns a paused primitive without a source.
func New() *Primitive {
	return &Primitive{
		paused: true,
		rate:   1,
		volume: 1,
		events: make(chan hostaudio.Event, 256),
	}
}

var (
	_ hostaudio.Primitive = (*Primitive)(nil)
	_ hostaudio.Trimmer   = (*Primitive)(nil)
)

func (p *Primitive) record(call string) {
	p.calls = append(p.calls, call)
}

func (p *Primitive) SetSource(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("set_source")
	p.source = url
	p.sources = append(p.sources, url)
	p.current = 0
	p.ready = hostaudio.HaveNothing
	return nil
}

func (p *Primitive) ClearSource() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("clear_source")
	p.source = ""
	p.paused = true
	p.ready = hostaudio.HaveNothing
	p.buffered = nil
}

func (p *Primitive) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("play")
	if p.playErr != nil {
		return p.playErr
	}
	p.paused = false
	return nil
}

func (p *Primitive) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("pause")
	p.paused = true
}

func (p *Primitive) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Primitive) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("seek")
	p.current = t
}

func (p *Primitive) Buffered() []hostaudio.Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]hostaudio.Range(nil), p.buffered...)
}

func (p *Primitive) ReadyState() hostaudio.ReadyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *Primitive) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Primitive) HasSource() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source != ""
}

func (p *Primitive) PlaybackRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *Primitive) SetPlaybackRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("set_rate")
	p.rate = rate
}

func (p *Primitive) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
}

func (p *Primitive) SetMuted(m bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = m
}

func (p *Primitive) Events() <-chan hostaudio.Event { return p.events }

func (p *Primitive) TrimPlayed(before float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("trim")
	p.trimmed = append(p.trimmed, before)
	return nil
}

// Emit queues an event tagged with the current source.
func (p *Primitive) Emit(kind hostaudio.EventKind) {
	p.mu.Lock()
	src := p.source
	p.mu.Unlock()
	p.EmitFrom(src, kind, nil)
}

// EmitError queues an error event tagged with the current source.
func (p *Primitive) EmitError(code hostaudio.MediaErrorCode) {
	p.mu.Lock()
	src := p.source
	p.mu.Unlock()
	p.EmitFrom(src, hostaudio.EventError, &hostaudio.MediaError{Code: code})
}

// EmitFrom queues an event for an explicit source, e.g. a superseded one.
func (p *Primitive) EmitFrom(source string, kind hostaudio.EventKind, err *hostaudio.MediaError) {
	p.mu.Lock()
	switch kind {
	case hostaudio.EventPlaying:
		p.paused = false
		if p.ready < hostaudio.HaveFutureData {
			p.ready = hostaudio.HaveEnoughData
		}
	case hostaudio.EventPause:
		p.paused = true
	}
	p.mu.Unlock()
	p.events <- hostaudio.Event{Kind: kind, Source: source, Err: err}
}

// SetPlayError makes subsequent Play calls fail with err.
func (p *Primitive) SetPlayError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playErr = err
}

// SetBuffer sets the buffered window and readiness.
func (p *Primitive) SetBuffer(current, ahead float64, ready hostaudio.ReadyState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.ready = ready
	p.buffered = []hostaudio.Range{{Start: 0, End: current + ahead}}
}

// Calls returns the recorded call names in order.
func (p *Primitive) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Count returns how many times call was recorded.
func (p *Primitive) Count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

// Source returns the current source URL.
func (p *Primitive) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Sources returns every source ever set.
func (p *Primitive) Sources() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sources...)
}

// Volume returns the applied volume and mute flag.
func (p *Primitive) Volume() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume, p.muted
}

// Trimmed returns the positions passed to TrimPlayed.
func (p *Primitive) Trimmed() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.trimmed...)
}
