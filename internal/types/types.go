// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package types

type CallbackRequest struct {
	RunID  int64  `json:"runId"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Error  string `json:"error,optional"`
}

type CallbackResponse struct {
	Accepted bool `json:"accepted"`
}

type TriggerRequest struct {
	Timeframe string `json:"timeframe"`
	At        string `json:"at,optional"` // RFC3339; defaults to now
}

type RunRequest struct {
	ID    int64 `path:"id"`
	Items bool  `form:"items,optional"`
}

type RunItem struct {
	Symbol    string `json:"symbol"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

type RunResponse struct {
	ID             int64     `json:"id"`
	Timeframe      string    `json:"timeframe"`
	SlotStart      string    `json:"slotStart"`
	SlotEnd        string    `json:"slotEnd"`
	Status         string    `json:"status"`
	SnapshotDone   bool      `json:"snapshotDone"`
	SnapshotSource string    `json:"snapshotSource,omitempty"`
	SnapshotCount  int       `json:"snapshotCount"`
	Enqueued       int       `json:"enqueued"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	Remaining      int       `json:"remaining"`
	Items          []RunItem `json:"items,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UniverseRequest struct {
	Provider string   `json:"provider"`
	Symbols  []string `json:"symbols"`
}

type UniverseResponse struct {
	Provider string `json:"provider"`
	Listed   int64  `json:"listed"`
	Delisted int64  `json:"delisted"`
}
