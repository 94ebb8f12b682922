package retry

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a domain error surfaced by the cluster manager.
// Codes are compared verbatim; callers translating a vendor error surface
// are expected to map onto these names.
type ErrorCode string

const (
	CodeOperationTimedOut  ErrorCode = "OperationTimedOut"
	CodeCommunicationError ErrorCode = "CommunicationError"
	CodeServiceTooBusy     ErrorCode = "ServiceTooBusy"

	CodeHealthEntityNotFound                   ErrorCode = "HealthEntityNotFound"
	CodeServiceNotFound                        ErrorCode = "ServiceNotFound"
	CodePLBNotReady                            ErrorCode = "PLBNotReady"
	CodeAlreadyPrimaryReplica                  ErrorCode = "AlreadyPrimaryReplica"
	CodeAlreadySecondaryReplica                ErrorCode = "AlreadySecondaryReplica"
	CodeReplicaDoesNotExist                    ErrorCode = "ReplicaDoesNotExist"
	CodeInvalidReplicaStateForReplicaOperation ErrorCode = "InvalidReplicaStateForReplicaOperation"
	CodeReconfigurationPending                 ErrorCode = "ReconfigurationPending"
	CodeObjectClosed                           ErrorCode = "ObjectClosed"
	CodeApplicationAlreadyExists               ErrorCode = "ApplicationAlreadyExists"
	CodeApplicationNotFound                    ErrorCode = "ApplicationNotFound"
	CodeApplicationTypeAlreadyProvisioned      ErrorCode = "ApplicationTypeAlreadyProvisioned"
	CodeApplicationAlreadyUpgrading            ErrorCode = "ApplicationAlreadyUpgrading"
)

// internalBehaviorMissing is the raw numeric code returned by the unmanaged
// transport-behavior surface when the behavior to remove is already gone.
const internalBehaviorMissing int32 = 0x1BBC

// Baseline transient exception kinds. Cluster client adapters wrap their
// vendor errors so these match through errors.Is.
var (
	// ErrNotReadable signals the target entity exists but cannot serve
	// reads yet, typically mid-reconfiguration.
	ErrNotReadable = errors.New("entity is not readable")
	// ErrTransient marks a generically transient cluster fault.
	ErrTransient = errors.New("transient cluster fault")
)

// CodeError carries a domain error code through an error chain so
// ClassifyError can classify code-bearing failures without the caller
// splitting the two surfaces by hand.
type CodeError struct {
	Code ErrorCode
	Err  error
}

// Error implements error.
func (e *CodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

// Unwrap exposes the wrapped cause, if any.
func (e *CodeError) Unwrap() error { return e.Err }

// NewCodeError wraps err with a domain error code.
func NewCodeError(code ErrorCode, err error) *CodeError {
	return &CodeError{Code: code, Err: err}
}
