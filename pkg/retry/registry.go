// Package retry classifies the outcome of cluster-management operations so
// callers can distinguish transient failures worth retrying from failures
// that actually mean "already succeeded" or "fatal".
//
// The registry is pure data: it never performs I/O and never retries
// anything itself. Backoff, attempt caps and re-invocation remain the
// caller's responsibility.
package retry

import (
	"context"
	"errors"
	"sync"
)

// Verdict is the three-way classification handed back to the caller.
type Verdict int

const (
	// Fatal outcomes must propagate to the caller unchanged.
	Fatal Verdict = iota
	// Retry outcomes indicate a transient condition; re-invoking the same
	// operation under a capped backoff policy may succeed.
	Retry
	// Success outcomes indicate the operation's intended effect already
	// holds, so the call must be treated as completed with no retry.
	Success
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Retry:
		return "Retry"
	case Success:
		return "Success"
	default:
		return "Fatal"
	}
}

// Named cluster-management operations with dedicated classification rules.
// Unknown operation names classify against the baseline sets only.
const (
	OpGetEntityHealth                   = "GetEntityHealth"
	OpMoveSecondary                     = "MoveSecondary"
	OpMovePrimary                       = "MovePrimary"
	OpRemoveReplica                     = "RemoveReplica"
	OpRestartReplica                    = "RestartReplica"
	OpGetPartitionList                  = "GetPartitionList"
	OpGetClusterManifest                = "GetClusterManifest"
	OpProvision                         = "Provision"
	OpUpgrade                           = "Upgrade"
	OpRemoveUnreliableTransportBehavior = "RemoveUnreliableTransportBehavior"
	OpCreateApp                         = "CreateApp"
	OpDeleteApp                         = "DeleteApp"
)

// rules holds the classification sets for one operation. Success sets are
// consulted before retryable sets: an outcome that proves the effect
// already holds must never be retried, even when it would also match a
// retryable entry.
type rules struct {
	retryableCodes       map[ErrorCode]struct{}
	successCodes         map[ErrorCode]struct{}
	internalSuccessCodes map[int32]struct{}
	retryableErrors      []error
	successErrors        []error
}

func newRules() *rules {
	return &rules{
		retryableCodes:       make(map[ErrorCode]struct{}),
		successCodes:         make(map[ErrorCode]struct{}),
		internalSuccessCodes: make(map[int32]struct{}),
	}
}

func (r *rules) addRetryableCodes(codes ...ErrorCode) *rules {
	for _, code := range codes {
		r.retryableCodes[code] = struct{}{}
	}
	return r
}

func (r *rules) addSuccessCodes(codes ...ErrorCode) *rules {
	for _, code := range codes {
		r.successCodes[code] = struct{}{}
	}
	return r
}

func (r *rules) addInternalSuccessCodes(codes ...int32) *rules {
	for _, code := range codes {
		r.internalSuccessCodes[code] = struct{}{}
	}
	return r
}

func (r *rules) addRetryableErrors(errs ...error) *rules {
	r.retryableErrors = append(r.retryableErrors, errs...)
	return r
}

func (r *rules) addSuccessErrors(errs ...error) *rules {
	r.successErrors = append(r.successErrors, errs...)
	return r
}

// Registry maps operation names to classification rules. Build it once
// with NewRegistry; it is immutable afterwards and safe for unlimited
// concurrent readers.
type Registry struct {
	baseline *rules
	ops      map[string]*rules
}

// NewRegistry builds the full classification table eagerly. Every
// operation entry is seeded with the baseline transient conditions before
// its operation-specific additions are layered on.
func NewRegistry() *Registry {
	registry := &Registry{
		baseline: baselineRules(),
		ops:      make(map[string]*rules),
	}

	registry.op(OpGetEntityHealth).
		addRetryableCodes(CodeHealthEntityNotFound)

	registry.op(OpMoveSecondary).
		addRetryableCodes(CodePLBNotReady).
		addSuccessCodes(CodeAlreadySecondaryReplica)

	registry.op(OpMovePrimary).
		addRetryableCodes(CodePLBNotReady).
		addSuccessCodes(CodeAlreadyPrimaryReplica)

	registry.op(OpRemoveReplica).
		addRetryableCodes(CodeReconfigurationPending).
		addSuccessCodes(CodeReplicaDoesNotExist, CodeObjectClosed)

	registry.op(OpRestartReplica).
		addRetryableCodes(CodeReconfigurationPending).
		addSuccessCodes(CodeReplicaDoesNotExist, CodeInvalidReplicaStateForReplicaOperation)

	registry.op(OpGetPartitionList).
		addRetryableCodes(CodeServiceNotFound).
		addRetryableErrors(ErrTransient)

	registry.op(OpGetClusterManifest)

	registry.op(OpProvision).
		addSuccessCodes(CodeApplicationTypeAlreadyProvisioned)

	registry.op(OpUpgrade).
		addSuccessCodes(CodeApplicationAlreadyUpgrading)

	registry.op(OpRemoveUnreliableTransportBehavior).
		addInternalSuccessCodes(internalBehaviorMissing)

	registry.op(OpCreateApp).
		addSuccessCodes(CodeApplicationAlreadyExists)

	registry.op(OpDeleteApp).
		addSuccessCodes(CodeApplicationNotFound)

	return registry
}

func baselineRules() *rules {
	base := newRules()
	base.addRetryableCodes(CodeOperationTimedOut, CodeCommunicationError, CodeServiceTooBusy)
	base.addRetryableErrors(context.DeadlineExceeded, context.Canceled, ErrNotReadable)
	return base
}

// op registers and returns the rules entry for an operation, seeded from
// the baseline.
func (r *Registry) op(name string) *rules {
	entry := baselineRules()
	r.ops[name] = entry
	return entry
}

func (r *Registry) rulesFor(operation string) *rules {
	if entry, ok := r.ops[operation]; ok {
		return entry
	}
	return r.baseline
}

// ClassifyError classifies a raised error for the named operation. Errors
// carrying a domain code via CodeError are classified through the code
// sets; all other errors are matched against the exception-kind sets with
// errors.Is.
func (r *Registry) ClassifyError(operation string, err error) Verdict {
	if err == nil {
		return Success
	}

	var coded *CodeError
	if errors.As(err, &coded) {
		return r.ClassifyCode(operation, coded.Code)
	}

	entry := r.rulesFor(operation)
	for _, target := range entry.successErrors {
		if errors.Is(err, target) {
			return Success
		}
	}
	for _, target := range entry.retryableErrors {
		if errors.Is(err, target) {
			return Retry
		}
	}
	return Fatal
}

// ClassifyCode classifies a domain error code for the named operation.
func (r *Registry) ClassifyCode(operation string, code ErrorCode) Verdict {
	entry := r.rulesFor(operation)
	if _, ok := entry.successCodes[code]; ok {
		return Success
	}
	if _, ok := entry.retryableCodes[code]; ok {
		return Retry
	}
	return Fatal
}

// ClassifyInternalCode classifies a raw numeric code from an unmanaged
// error surface for the named operation.
func (r *Registry) ClassifyInternalCode(operation string, code int32) Verdict {
	entry := r.rulesFor(operation)
	if _, ok := entry.internalSuccessCodes[code]; ok {
		return Success
	}
	return Fatal
}

// Operations lists the operation names with dedicated rules.
func (r *Registry) Operations() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns a process-wide shared registry, built exactly once even
// under concurrent first access. Callers that want an isolated table for
// testing should use NewRegistry directly.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
