package domain

import "time"

// KeyStatusEntry describes one encryption key row without exposing key material.
type KeyStatusEntry struct {
	Label      string     `json:"label"`
	Algorithm  Algorithm  `json:"algorithm"`
	WrapScheme WrapScheme `json:"wrap_scheme"`
	KMSKeyID   string     `json:"kms_key_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// KeyStatus is the operator-facing view of the subsystem: the write label,
// readiness, whether a rotation is open, and how many records still lag the
// write label.
type KeyStatus struct {
	WriteLabel         string           `json:"write_label"`
	Ready              bool             `json:"ready"`
	AuthFailed         bool             `json:"auth_failed"`
	RotationInProgress bool             `json:"rotation_in_progress"`
	RotatingLabel      string           `json:"rotating_label,omitempty"`
	PendingRecords     int64            `json:"pending_records"`
	Keys               []KeyStatusEntry `json:"keys"`
}

// RotationProgress reports the outcome of one rotation run batch.
type RotationProgress struct {
	Migrated  int64 `json:"migrated"`
	Remaining int64 `json:"remaining"`
}
