// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpsink is a headless hostaudio.Primitive. It pulls the audio
// transport over HTTP and plays it out at a nominal byte rate, so the engine can
// run end-to-end without a GUI host.
package httpsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/radiosync/internal/hostaudio"
	xglog "github.com/ManuGH/radiosync/internal/log"
	"github.com/ManuGH/radiosync/internal/platform/httpx"
	"github.com/rs/zerolog"
)

const (
	defaultByteRate     = 16000
	defaultStartBuffer  = 2 * time.Second
	defaultTick         = 100 * time.Millisecond
	defaultStallTimeout = 5 * time.Second
	readChunk           = 4096
)

// Config tunes the sink.
type Config struct {
	// ByteRate is the nominal bytes per second of the transport.
	ByteRate int
	// StartBuffer is the media that must be buffered before playback starts.
	StartBuffer time.Duration
	// Tick is the playout resolution.
	Tick time.Duration
	// StallTimeout is how long without incoming bytes while waiting before a stalled event.
	StallTimeout time.Duration
	Client       *http.Client
}

// Sink implements hostaudio.Primitive on top of an HTTP response body.
type Sink struct {
	cfg    Config
	logger zerolog.Logger
	events chan hostaudio.Event

	mu       sync.Mutex
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	gen      uint64
	source   string
	running  bool
	paused   bool
	started  bool
	waiting  bool
	stalled  bool
	eof      bool
	received int64
	played   float64
	lastByte time.Time
	rate     float64
	volume   float64
	muted    bool
}

var _ hostaudio.Primitive = (*Sink)(nil)

// New returns a sink without a source.
func New(cfg Config) *Sink {
	if cfg.ByteRate <= 0 {
		cfg.ByteRate = defaultByteRate
	}
	if cfg.StartBuffer <= 0 {
		cfg.StartBuffer = defaultStartBuffer
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = defaultStallTimeout
	}
	if cfg.Client == nil {
		cfg.Client = httpx.NewStreamingClient()
	}
	return &Sink{
		cfg:    cfg,
		logger: xglog.WithComponent("httpsink"),
		events: make(chan hostaudio.Event, 64),
		paused: true,
		rate:   1,
		volume: 1,
	}
}

// emit must be called with mu held. Events are dropped when the consumer lags.
func (s *Sink) emit(kind hostaudio.EventKind, merr *hostaudio.MediaError) {
	ev := hostaudio.Event{Kind: kind, Source: s.source, Err: merr, At: time.Now()}
	select {
	case s.events <- ev:
	default:
		if kind != hostaudio.EventTimeUpdate {
			s.logger.Warn().Str("kind", string(kind)).Msg("event dropped, consumer lagging")
		}
	}
}

func (s *Sink) SetSource(url string) error {
	if url == "" {
		return errors.New("httpsink: empty source")
	}
	s.ClearSource()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = url
	return nil
}

func (s *Sink) ClearSource() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.source = ""
	s.running = false
	s.paused = true
	s.started, s.waiting, s.stalled, s.eof = false, false, false, false
	s.received, s.played = 0, 0
	s.mu.Unlock()
	s.wg.Wait()
}

// Close releases the transport.
func (s *Sink) Close() error {
	s.ClearSource()
	return nil
}

func (s *Sink) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == "" {
		return errors.New("httpsink: no source")
	}
	s.paused = false
	if s.running {
		return nil
	}

	// The transport outlives the Play call; ClearSource ends it.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.lastByte = time.Now()
	gen := s.gen
	url := s.source

	s.wg.Add(2)
	go s.fetch(runCtx, gen, url)
	go s.playout(runCtx, gen)
	return nil
}

func (s *Sink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.emit(hostaudio.EventPause, nil)
}

func (s *Sink) fail(gen uint64, code hostaudio.MediaErrorCode, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.emit(hostaudio.EventError, &hostaudio.MediaError{Code: code, Message: msg})
}

func (s *Sink) fetch(ctx context.Context, gen uint64, url string) {
	defer s.wg.Done()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		s.fail(gen, hostaudio.MediaErrSrcNotSupported, err.Error())
		return
	}
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(gen, hostaudio.MediaErrNetwork, err.Error())
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		s.fail(gen, hostaudio.MediaErrNetwork, fmt.Sprintf("HTTP %d", resp.StatusCode))
		return
	case resp.StatusCode >= 300:
		s.fail(gen, hostaudio.MediaErrSrcNotSupported, fmt.Sprintf("HTTP %d", resp.StatusCode))
		return
	}

	buf := make([]byte, readChunk)
	for {
		n, err := resp.Body.Read(buf)
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		if n > 0 {
			s.received += int64(n)
			s.lastByte = time.Now()
			s.stalled = false
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
		}
		s.mu.Unlock()

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return
		default:
			if ctx.Err() == nil {
				s.fail(gen, hostaudio.MediaErrNetwork, err.Error())
			}
			return
		}
	}
}

func (s *Sink) playout(ctx context.Context, gen uint64) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if done := s.advance(gen, now); done {
				return
			}
		}
	}
}

// advance moves the playhead by one tick and reports whether playout finished.
func (s *Sink) advance(gen uint64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return true
	}

	bufferedSec := s.bufferedSeconds()
	ahead := bufferedSec - s.played

	if s.paused {
		return false
	}

	if !s.started || s.waiting {
		if ahead >= s.cfg.StartBuffer.Seconds() || (s.eof && ahead > 0) {
			s.started, s.waiting, s.stalled = true, false, false
			s.emit(hostaudio.EventPlaying, nil)
			return false
		}
		if s.eof && s.received > 0 && ahead <= 0 {
			s.emit(hostaudio.EventEnded, nil)
			return true
		}
		if s.waiting && !s.stalled && now.Sub(s.lastByte) > s.cfg.StallTimeout {
			s.stalled = true
			s.emit(hostaudio.EventStalled, nil)
		}
		return false
	}

	s.played += s.cfg.Tick.Seconds() * s.rate
	s.emit(hostaudio.EventTimeUpdate, nil)
	if s.played < bufferedSec {
		return false
	}
	s.played = bufferedSec
	if s.eof {
		s.emit(hostaudio.EventEnded, nil)
		return true
	}
	s.waiting = true
	s.emit(hostaudio.EventWaiting, nil)
	return false
}

// bufferedSeconds must be called with mu held.
func (s *Sink) bufferedSeconds() float64 {
	return float64(s.received) / float64(s.cfg.ByteRate)
}

func (s *Sink) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.played
}

func (s *Sink) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t < 0 {
		t = 0
	}
	if limit := s.bufferedSeconds(); t > limit {
		t = limit
	}
	s.played = t
}

func (s *Sink) Buffered() []hostaudio.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.received == 0 {
		return nil
	}
	return []hostaudio.Range{{Start: 0, End: s.bufferedSeconds()}}
}

func (s *Sink) ReadyState() hostaudio.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.source == "" || s.received == 0:
		return hostaudio.HaveNothing
	case s.waiting:
		return hostaudio.HaveCurrentData
	case s.bufferedSeconds()-s.played >= s.cfg.StartBuffer.Seconds():
		return hostaudio.HaveEnoughData
	default:
		return hostaudio.HaveFutureData
	}
}

func (s *Sink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Sink) HasSource() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != ""
}

func (s *Sink) PlaybackRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Sink) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

// SetVolume and SetMuted are recorded only; the sink produces no sound.
func (s *Sink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *Sink) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

func (s *Sink) Events() <-chan hostaudio.Event { return s.events }
