package models

// SyncReport is the terminal tally of a batch sync run. A run always reaches
// completion; per-invoice failures are counted here instead of aborting it.
type SyncReport struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Errors    int `json:"errors"`
}
