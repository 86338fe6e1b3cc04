// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// Change is one differing setting between two snapshots.
type Change struct {
	Field string
	Old   string
	New   string
	// Live changes are applied by the running daemon; the rest need a restart.
	Live bool
}

// Diff lists the settings that differ between old and next.
func Diff(old, next AppConfig) []Change {
	var out []Change
	add := func(field, a, b string, live bool) {
		if a != b {
			out = append(out, Change{Field: field, Old: a, New: b, Live: live})
		}
	}

	add("network.class", old.Network.Class, next.Network.Class, true)
	add("log.level", old.Log.Level, next.Log.Level, true)

	add("server.baseURL", maskURL(old.Server.BaseURL), maskURL(next.Server.BaseURL), false)
	add("server.nowPlayingPath", old.Server.NowPlayingPath, next.Server.NowPlayingPath, false)
	add("server.heartbeatPath", old.Server.HeartbeatPath, next.Server.HeartbeatPath, false)
	add("server.streamPath", old.Server.StreamPath, next.Server.StreamPath, false)
	add("device.class", old.Device.Class, next.Device.Class, false)
	add("resume.backend", old.Resume.Backend, next.Resume.Backend, false)
	add("api.listen", old.API.Listen, next.API.Listen, false)
	if old.Reconnect != next.Reconnect {
		out = append(out, Change{Field: "reconnect", Old: "", New: ""})
	}
	if old.Sink != next.Sink {
		out = append(out, Change{Field: "sink", Old: "", New: ""})
	}
	if old.Telemetry != next.Telemetry {
		out = append(out, Change{Field: "telemetry", Old: "", New: ""})
	}
	return out
}
