// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package profile

// Tuning is the active parameter set: the fixed device record combined with the
// current network record.
type Tuning struct {
	Device  Device
	Network Network
}

// Resolve builds the tuning for a device/network pair.
func Resolve(device DeviceClass, network NetworkClass) Tuning {
	return Tuning{Device: DeviceFor(device), Network: NetworkFor(network)}
}

// WithNetwork returns a copy of t with the network record replaced in place.
func (t Tuning) WithNetwork(class NetworkClass) Tuning {
	t.Network = NetworkFor(class)
	return t
}
