// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

import "sync"

// Monitor fans out host network-change notifications. Subscribers receive only
// the latest class; intermediate values may be coalesced.
type Monitor struct {
	mu      sync.Mutex
	current NetworkClass
	subs    []chan NetworkClass
}

// NewMonitor returns a monitor seeded with initial.
func NewMonitor(initial NetworkClass) *Monitor {
	return &Monitor{current: ParseNetworkClass(string(initial))}
}

// Current returns the last reported class.
func (m *Monitor) Current() NetworkClass {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe returns a channel that receives subsequent changes.
func (m *Monitor) Subscribe() <-chan NetworkClass {
	ch := make(chan NetworkClass, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Set records a new class and notifies subscribers if it changed.
func (m *Monitor) Set(class NetworkClass) bool {
	class = ParseNetworkClass(string(class))
	m.mu.Lock()
	defer m.mu.Unlock()
	if class == m.current {
		return false
	}
	m.current = class
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- class
	}
	return true
}
