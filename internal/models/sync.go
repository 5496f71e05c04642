package models

// SyncChange is one client-side edit inside a sync request. The payload is
// deliberately loose: a kind, the id of the entity it targets, and a bag of
// fields applied last-writer-wins. The client owns the schema evolution.
type SyncChange struct {
	Kind   string         `json:"kind"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// RejectedChange reports a sync change that could not be applied.
type RejectedChange struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}
