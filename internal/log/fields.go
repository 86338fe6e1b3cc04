// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID    = "session_id"
	FieldConnectionID = "connection_id"
	FieldRequestID    = "request_id"
	FieldTrackID      = "track_id"
	FieldEpoch        = "epoch"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldReason    = "reason"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Sync fields
	FieldDrift      = "drift_s"
	FieldPosition   = "position_s"
	FieldCorrection = "correction_s"

	// Reconnect fields
	FieldAttempt = "attempt"
	FieldDelay   = "delay"

	// Profile fields
	FieldDeviceClass  = "device_class"
	FieldNetworkClass = "network_class"

	// Transport fields
	FieldURL = "url"
)
