// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ManuGH/radiosync/internal/bus"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Event is one websocket frame: Type is the bus topic, Data the payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleEvents upgrades to a websocket and streams the current status followed
// by every status, track and error event until either side goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := make([]bus.Subscriber, 0, 3)
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()
	for _, topic := range []string{bus.TopicStatus, bus.TopicTrack, bus.TopicError} {
		sub, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "subscribe_failed", err.Error())
			return
		}
		subs = append(subs, sub)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.logger.Debug().Err(err).Str("event", "api.ws_upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	s.logger.Debug().Str("event", "api.ws_open").Str("remote", r.RemoteAddr).Msg("event stream opened")

	// The read side only exists to notice the client going away.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev) == nil
	}

	if !send(Event{Type: bus.TopicStatus, Data: s.ctrl.Status()}) {
		return
	}

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	statusC, trackC, errorC := subs[0].C(), subs[1].C(), subs[2].C()
	for {
		var ev Event
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
			continue
		case msg, ok := <-statusC:
			if !ok {
				return
			}
			ev = Event{Type: bus.TopicStatus, Data: msg}
		case msg, ok := <-trackC:
			if !ok {
				return
			}
			ev = Event{Type: bus.TopicTrack, Data: msg}
		case msg, ok := <-errorC:
			if !ok {
				return
			}
			ev = Event{Type: bus.TopicError, Data: msg}
		}
		if !send(ev) {
			return
		}
	}
}
