package report

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Target identifies the concrete cluster entity a health entry is recorded
// against. Exactly one variant exists per addressable entity shape, and
// each variant can only be built through its validating constructor, so a
// resolved target always carries the identity fields its shape requires.
//
// Key returns a stable, path-like identity for the entity. Sinks use it to
// apply last-write-wins semantics per (entity, source, property).
type Target interface {
	Key() string
	isTarget()
}

// ApplicationTarget addresses a whole application.
type ApplicationTarget struct {
	AppName string
}

// ServiceTarget addresses a whole service.
type ServiceTarget struct {
	ServiceName string
}

// StatefulReplicaTarget addresses one replica of a stateful partition.
type StatefulReplicaTarget struct {
	PartitionID uuid.UUID
	ReplicaID   int64
}

// StatelessInstanceTarget addresses one instance of a stateless partition.
type StatelessInstanceTarget struct {
	PartitionID uuid.UUID
	InstanceID  int64
}

// PartitionTarget addresses a partition as a whole.
type PartitionTarget struct {
	PartitionID uuid.UUID
}

// DeployedApplicationTarget addresses an application as deployed on a node.
type DeployedApplicationTarget struct {
	AppName  string
	NodeName string
}

// NodeTarget addresses a cluster node.
type NodeTarget struct {
	NodeName string
}

// NewApplicationTarget builds an application target.
func NewApplicationTarget(appName string) (ApplicationTarget, error) {
	if strings.TrimSpace(appName) == "" {
		return ApplicationTarget{}, errors.New("application target requires an application name")
	}
	return ApplicationTarget{AppName: appName}, nil
}

// NewServiceTarget builds a service target.
func NewServiceTarget(serviceName string) (ServiceTarget, error) {
	if strings.TrimSpace(serviceName) == "" {
		return ServiceTarget{}, errors.New("service target requires a service name")
	}
	return ServiceTarget{ServiceName: serviceName}, nil
}

// NewStatefulReplicaTarget builds a target for a stateful replica. The
// partition id must be non-empty and the replica id positive.
func NewStatefulReplicaTarget(partitionID uuid.UUID, replicaID int64) (StatefulReplicaTarget, error) {
	if partitionID == uuid.Nil {
		return StatefulReplicaTarget{}, errors.New("stateful replica target requires a partition id")
	}
	if replicaID <= 0 {
		return StatefulReplicaTarget{}, fmt.Errorf("stateful replica target requires a positive replica id, got %d", replicaID)
	}
	return StatefulReplicaTarget{PartitionID: partitionID, ReplicaID: replicaID}, nil
}

// NewStatelessInstanceTarget builds a target for a stateless instance. The
// partition id must be non-empty and the instance id positive.
func NewStatelessInstanceTarget(partitionID uuid.UUID, instanceID int64) (StatelessInstanceTarget, error) {
	if partitionID == uuid.Nil {
		return StatelessInstanceTarget{}, errors.New("stateless instance target requires a partition id")
	}
	if instanceID <= 0 {
		return StatelessInstanceTarget{}, fmt.Errorf("stateless instance target requires a positive instance id, got %d", instanceID)
	}
	return StatelessInstanceTarget{PartitionID: partitionID, InstanceID: instanceID}, nil
}

// NewPartitionTarget builds a partition target.
func NewPartitionTarget(partitionID uuid.UUID) (PartitionTarget, error) {
	if partitionID == uuid.Nil {
		return PartitionTarget{}, errors.New("partition target requires a partition id")
	}
	return PartitionTarget{PartitionID: partitionID}, nil
}

// NewDeployedApplicationTarget builds a target for an application deployed
// on a node. The node name is implied by the reporting process and may be
// filled in by the dispatcher before resolution.
func NewDeployedApplicationTarget(appName, nodeName string) (DeployedApplicationTarget, error) {
	if strings.TrimSpace(appName) == "" {
		return DeployedApplicationTarget{}, errors.New("deployed application target requires an application name")
	}
	if strings.TrimSpace(nodeName) == "" {
		return DeployedApplicationTarget{}, errors.New("deployed application target requires a node name")
	}
	return DeployedApplicationTarget{AppName: appName, NodeName: nodeName}, nil
}

// NewNodeTarget builds a node target.
func NewNodeTarget(nodeName string) (NodeTarget, error) {
	if strings.TrimSpace(nodeName) == "" {
		return NodeTarget{}, errors.New("node target requires a node name")
	}
	return NodeTarget{NodeName: nodeName}, nil
}

// Resolve maps a normalized report onto its dispatch target. The second
// return value is false when the report's kind-required identity fields are
// missing; such reports are dropped without error so that a malformed
// judgment, for example one produced by a scan racing an entity deletion,
// never crashes the observer loop.
func Resolve(r Report) (Target, bool) {
	switch r.Kind {
	case KindApplication:
		target, err := NewApplicationTarget(r.AppName)
		return target, err == nil
	case KindService:
		target, err := NewServiceTarget(r.ServiceName)
		return target, err == nil
	case KindStatefulService:
		target, err := NewStatefulReplicaTarget(r.PartitionID, r.ReplicaOrInstanceID)
		return target, err == nil
	case KindStatelessService:
		target, err := NewStatelessInstanceTarget(r.PartitionID, r.ReplicaOrInstanceID)
		return target, err == nil
	case KindPartition:
		target, err := NewPartitionTarget(r.PartitionID)
		return target, err == nil
	case KindDeployedApplication:
		target, err := NewDeployedApplicationTarget(r.AppName, r.NodeName)
		return target, err == nil
	case KindNode:
		target, err := NewNodeTarget(r.NodeName)
		return target, err == nil
	default:
		return nil, false
	}
}

// Key implements Target.
func (t ApplicationTarget) Key() string {
	return joinKey("applications", t.AppName)
}

// Key implements Target.
func (t ServiceTarget) Key() string {
	return joinKey("services", t.ServiceName)
}

// Key implements Target.
func (t StatefulReplicaTarget) Key() string {
	return joinKey("partitions", t.PartitionID.String(), "replicas", fmt.Sprintf("%d", t.ReplicaID))
}

// Key implements Target.
func (t StatelessInstanceTarget) Key() string {
	return joinKey("partitions", t.PartitionID.String(), "instances", fmt.Sprintf("%d", t.InstanceID))
}

// Key implements Target.
func (t PartitionTarget) Key() string {
	return joinKey("partitions", t.PartitionID.String())
}

// Key implements Target.
func (t DeployedApplicationTarget) Key() string {
	return joinKey("nodes", t.NodeName, "applications", t.AppName)
}

// Key implements Target.
func (t NodeTarget) Key() string {
	return joinKey("nodes", t.NodeName)
}

func (ApplicationTarget) isTarget()         {}
func (ServiceTarget) isTarget()             {}
func (StatefulReplicaTarget) isTarget()     {}
func (StatelessInstanceTarget) isTarget()   {}
func (PartitionTarget) isTarget()           {}
func (DeployedApplicationTarget) isTarget() {}
func (NodeTarget) isTarget()                {}

// joinKey escapes each segment so entity names containing separators, such
// as "fabric:/App" URIs, cannot collide with other entities' keys.
func joinKey(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return strings.Join(escaped, "/")
}

var (
	_ Target = ApplicationTarget{}
	_ Target = ServiceTarget{}
	_ Target = StatefulReplicaTarget{}
	_ Target = StatelessInstanceTarget{}
	_ Target = PartitionTarget{}
	_ Target = DeployedApplicationTarget{}
	_ Target = NodeTarget{}
)
