package report

import "time"

// DefaultTTL is applied when a report does not carry its own time-to-live.
const DefaultTTL = 5 * time.Minute

// SendPolicy captures how a report travels to the health sink.
type SendPolicy struct {
	// Immediate bypasses the sink's batching cadence. Ok reports are sent
	// immediately so a prior warning or error clears without waiting for
	// the next batch; warning and error reports tolerate eventual
	// delivery and must not pressure the cluster health subsystem.
	Immediate bool
	// TTL bounds how long the record stays fresh. Records are configured
	// to auto-expire so a crashed or unreporting observer cannot leave
	// stale state in the cluster health view.
	TTL time.Duration
}

// PolicyFor computes the send policy for a normalized report, using
// fallback as the time-to-live for reports that do not set one. A
// non-positive fallback selects DefaultTTL.
func PolicyFor(r Report, fallback time.Duration) SendPolicy {
	policy := SendPolicy{
		Immediate: r.State == StateOk,
		TTL:       fallback,
	}
	if policy.TTL <= 0 {
		policy.TTL = DefaultTTL
	}
	if r.TTL > 0 {
		policy.TTL = r.TTL
	}
	return policy
}
