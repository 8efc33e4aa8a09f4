package quota

import (
	"context"
	"time"
)

// Decision reasons, also used as metric label values.
const (
	ReasonOK           = "ok"
	ReasonPro          = "pro"
	ReasonFileTooLarge = "file_too_large"
	ReasonDailyLimit   = "daily_limit"
)

// Limits holds the allowance applied to each client.
type Limits struct {
	FreeDailyJobs    int
	FreeMaxFileBytes int64
	ProMaxFileBytes  int64
	// Window is the length of the rolling usage window.
	Window time.Duration
	// Retention is how long an idle free client's row is kept.
	Retention time.Duration
}

// DefaultLimits returns 5 jobs/day, 25 MB free and 500 MB pro.
func DefaultLimits() Limits {
	return Limits{
		FreeDailyJobs:    5,
		FreeMaxFileBytes: 25 << 20,
		ProMaxFileBytes:  500 << 20,
		Window:           24 * time.Hour,
		Retention:        48 * time.Hour,
	}
}

// Decision is the outcome of CheckAndReserve.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Usage reports a client's current allowance.
type Usage struct {
	Pro  bool `json:"isPro"`
	Used int  `json:"conversionsUsed"`
	// Remaining is -1 for clients without a job limit.
	Remaining     int       `json:"conversionsRemaining"`
	MaxFileSizeMB int64     `json:"maxFileSizeMb"`
	ResetAt       time.Time `json:"resetAt"`
}

// Checker decides whether a client may start another job. An allowed
// decision consumes one job from the allowance.
type Checker interface {
	CheckAndReserve(ctx context.Context, clientID string, fileSizeBytes int64) (Decision, error)
	Usage(ctx context.Context, clientID string) (Usage, error)
}

// Unlimited allows everything.
type Unlimited struct{}

// CheckAndReserve always allows.
func (Unlimited) CheckAndReserve(context.Context, string, int64) (Decision, error) {
	return Decision{Allowed: true, Reason: ReasonOK, Usage: Usage{Remaining: -1}}, nil
}

// Usage reports no limit.
func (Unlimited) Usage(context.Context, string) (Usage, error) {
	return Usage{Remaining: -1}, nil
}
