package report

import (
	"time"

	"github.com/google/uuid"
)

// State describes the severity a report asserts for its entity.
type State string

const (
	// StateOk clears any prior warning or error recorded by the same source.
	StateOk State = "Ok"
	// StateWarning flags a condition that may need operator attention.
	StateWarning State = "Warning"
	// StateError flags a condition that degrades the entity.
	StateError State = "Error"
)

// Kind selects which cluster entity shape a report targets. The identity
// fields required for each kind are documented on the target constructors.
type Kind string

const (
	KindApplication         Kind = "Application"
	KindService             Kind = "Service"
	KindStatefulService     Kind = "StatefulService"
	KindStatelessService    Kind = "StatelessService"
	KindPartition           Kind = "Partition"
	KindDeployedApplication Kind = "DeployedApplication"
	KindNode                Kind = "Node"
)

// Well-known observer names with fixed health-property buckets.
const (
	ObserverApp          = "AppObserver"
	ObserverCertificate  = "CertificateObserver"
	ObserverDisk         = "DiskObserver"
	ObserverFabricSystem = "FabricSystemObserver"
	ObserverNetwork      = "NetworkObserver"
	ObserverNode         = "NodeObserver"
	ObserverOS           = "OSObserver"
)

// OSConfigurationProperty marks OS configuration drift reports, which carry
// their own description preamble.
const OSConfigurationProperty = "OSConfiguration"

// GenericHealthProperty is the fallback property suffix for observers
// without a fixed bucket and without a payload-supplied property.
const GenericHealthProperty = "GenericHealthProperty"

// Report is a single health assertion about one cluster entity. A report is
// constructed by an observer, handed to the dispatcher once, and not reused.
//
// Identity fields are interpreted according to Kind; fields irrelevant to
// the kind are ignored. A report whose kind-required fields are missing is
// dropped during resolution rather than rejected with an error, so a racing
// scan (for example against a service that was just deleted) never breaks
// the observer loop that produced it.
type Report struct {
	// Observer names the subsystem that produced the judgment.
	Observer string
	// Kind selects the target entity shape.
	Kind Kind

	// AppName identifies the application for Application and
	// DeployedApplication reports.
	AppName string
	// ServiceName identifies the service for Service reports.
	ServiceName string
	// PartitionID identifies the partition for Partition, StatefulService
	// and StatelessService reports.
	PartitionID uuid.UUID
	// ReplicaOrInstanceID identifies the replica (stateful) or instance
	// (stateless) within the partition. Must be positive when required.
	ReplicaOrInstanceID int64
	// NodeName identifies the node for Node and DeployedApplication
	// reports. The dispatcher fills in its local node when left empty.
	NodeName string

	// State is the asserted severity.
	State State
	// SourceID identifies the reporting source; defaults to Observer.
	SourceID string
	// Property is the health-property bucket; defaulted per observer.
	Property string
	// Message is a free-text description of the judgment.
	Message string
	// Data is an optional structured payload. When present its
	// serialization replaces Message in the rendered description.
	Data any

	// TTL bounds how long the record stays fresh in the cluster health
	// view. Zero selects the dispatcher default.
	TTL time.Duration
	// EmitLogEvent additionally writes the report to the local log.
	EmitLogEvent bool
}
