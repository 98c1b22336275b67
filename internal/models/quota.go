package models

import "time"

// QuotaWindow is the shared fixed-window counter for one (identity, endpoint) pair.
// It only ever lives in the shared counter store.
type QuotaWindow struct {
	Identity    string    `json:"identity"`
	Tier        Tier      `json:"tier"`
	Endpoint    string    `json:"endpoint"`
	WindowStart time.Time `json:"window_start"`
	Count       int64     `json:"count"`
}

// QuotaDecision is the outcome of one admission attempt
type QuotaDecision struct {
	Admitted   bool          `json:"admitted"`
	Window     QuotaWindow   `json:"window"`
	Limit      int64         `json:"limit"` // -1 = unlimited
	Remaining  int64         `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetAt    time.Time     `json:"reset_at"`
	FailedOpen bool          `json:"failed_open,omitempty"` // admitted without consulting the store
}

// Unlimited reports whether the decision was made for an uncapped tier
func (d QuotaDecision) Unlimited() bool {
	return d.Limit < 0
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, never below 1 for a rejection
func (d QuotaDecision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		if d.Admitted {
			return 0
		}
		return 1
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
