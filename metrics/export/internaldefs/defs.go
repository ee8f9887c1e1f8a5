package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef binds a counter MetricID to its exported name and help text.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its exported name and help text.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter exported for a session manager, in render order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricInitRestored, Name: "algolearn_session_init_restored_total", Help: "Startups that restored a stored token."},
	{ID: goSession.MetricInitEmpty, Name: "algolearn_session_init_empty_total", Help: "Startups without a usable stored token."},
	{ID: goSession.MetricInitDiscardedExpired, Name: "algolearn_session_init_discarded_expired_total", Help: "Stored tokens discarded at startup because they had expired."},
	{ID: goSession.MetricSignInSuccess, Name: "algolearn_session_sign_in_success_total", Help: "Successful sign-ins."},
	{ID: goSession.MetricSignInFailure, Name: "algolearn_session_sign_in_failure_total", Help: "Sign-ins refused by the backend or lost in transport."},
	{ID: goSession.MetricSignInValidationRejected, Name: "algolearn_session_sign_in_validation_rejected_total", Help: "Sign-ins rejected by local validation."},
	{ID: goSession.MetricSignUpSuccess, Name: "algolearn_session_sign_up_success_total", Help: "Successful registrations."},
	{ID: goSession.MetricSignUpFailure, Name: "algolearn_session_sign_up_failure_total", Help: "Registrations refused by the backend or lost in transport."},
	{ID: goSession.MetricSignUpValidationRejected, Name: "algolearn_session_sign_up_validation_rejected_total", Help: "Registrations rejected by local validation."},
	{ID: goSession.MetricSignOut, Name: "algolearn_session_sign_out_total", Help: "Explicit sign-outs."},
	{ID: goSession.MetricAuthFailure, Name: "algolearn_session_auth_failure_total", Help: "Forced sign-outs after the backend refused the token."},
	{ID: goSession.MetricAccountDeleted, Name: "algolearn_session_account_deleted_total", Help: "Successful account deletions."},
	{ID: goSession.MetricOperationRejected, Name: "algolearn_session_operation_rejected_total", Help: "Operations refused by the state or in-flight guards."},
	{ID: goSession.MetricStorageError, Name: "algolearn_session_storage_error_total", Help: "Token store failures that were logged and swallowed."},
}

// HistogramDefs lists every histogram exported for a session manager.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricSignInLatency, Name: "algolearn_session_sign_in_latency_seconds", Help: "Sign-in backend round-trip latency."},
}

// DroppedEventsName is the counter for events lost to dispatcher backpressure.
const (
	DroppedEventsName = "algolearn_session_events_dropped_total"
	DroppedEventsHelp = "Session events dropped due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// bucket of a snapshot is the implicit +Inf bucket.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// encode the bound in the instrument name.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
