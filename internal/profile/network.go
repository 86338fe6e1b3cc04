// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

import (
	"strings"
	"time"
)

// NetworkClass is the effective connection type reported by the host.
type NetworkClass string

const (
	NetworkSlow2G  NetworkClass = "slow-2g"
	Network2G      NetworkClass = "2g"
	Network3G      NetworkClass = "3g"
	Network4G      NetworkClass = "4g"
	NetworkUnknown NetworkClass = "unknown"
)

// Network carries the timing values selected by network class.
type Network struct {
	Class              NetworkClass
	PollInterval       time.Duration
	StallTimeout       time.Duration
	ReconnectBaseDelay time.Duration
	BackoffMultiplier  float64
}

var networks = map[NetworkClass]Network{
	NetworkSlow2G: {Class: NetworkSlow2G, PollInterval: 15 * time.Second, StallTimeout: 20 * time.Second, ReconnectBaseDelay: 4 * time.Second, BackoffMultiplier: 2.0},
	Network2G:     {Class: Network2G, PollInterval: 12 * time.Second, StallTimeout: 15 * time.Second, ReconnectBaseDelay: 3 * time.Second, BackoffMultiplier: 2.0},
	Network3G:     {Class: Network3G, PollInterval: 8 * time.Second, StallTimeout: 10 * time.Second, ReconnectBaseDelay: 2 * time.Second, BackoffMultiplier: 1.4},
	Network4G:     {Class: Network4G, PollInterval: 5 * time.Second, StallTimeout: 8 * time.Second, ReconnectBaseDelay: time.Second, BackoffMultiplier: 1.0},
}

// NetworkFor returns the record for class. Unknown or missing network
// information degrades to the good-connection profile.
func NetworkFor(class NetworkClass) Network {
	if n, ok := networks[class]; ok {
		return n
	}
	n := networks[Network4G]
	n.Class = NetworkUnknown
	return n
}

// ParseNetworkClass maps host-reported effective types; anything unrecognised is unknown.
func ParseNetworkClass(s string) NetworkClass {
	switch c := NetworkClass(strings.ToLower(strings.TrimSpace(s))); c {
	case NetworkSlow2G, Network2G, Network3G, Network4G:
		return c
	default:
		return NetworkUnknown
	}
}
