package report

import (
	"encoding/json"
	"fmt"
)

// PropertyProvider is implemented by structured payloads that carry the
// name of the resource property they measured. It feeds the fallback
// health-property bucket for observers without a fixed mapping.
type PropertyProvider interface {
	HealthProperty() string
}

// observerProperties maps well-known observers to their fixed
// health-property buckets.
var observerProperties = map[string]string{
	ObserverApp:          "ApplicationHealth",
	ObserverCertificate:  "SecurityHealth",
	ObserverDisk:         "DiskHealth",
	ObserverFabricSystem: "FabricSystemServiceHealth",
	ObserverNetwork:      "NetworkingHealth",
	ObserverNode:         "MachineResourceHealth",
	ObserverOS:           "MachineInformation",
}

// Normalize fills in the defaulted identity fields of a report before
// dispatch. SourceID falls back to the observer name; Property falls back
// to the observer's fixed bucket, or to "{Observer}_{payload property}"
// when the observer has none. Normalize is idempotent: fields that already
// hold a value are left untouched.
func Normalize(r Report) Report {
	if r.SourceID == "" {
		r.SourceID = r.Observer
	}
	if r.Property == "" {
		if prop, ok := observerProperties[r.Observer]; ok {
			r.Property = prop
		} else {
			r.Property = r.Observer + "_" + payloadProperty(r.Data)
		}
	}
	return r
}

// Description renders the body recorded against the target entity. A
// structured payload fully replaces the free-text message so downstream
// consumers can parse it; otherwise warning and error reports are prefixed
// with a preamble naming the observer and the breached severity.
func Description(r Report) string {
	if r.Data != nil {
		if encoded, err := json.Marshal(r.Data); err == nil {
			return string(encoded)
		}
	}
	return preamble(r) + r.Message
}

func preamble(r Report) string {
	if r.State != StateWarning && r.State != StateError {
		return ""
	}
	if r.Observer == ObserverOS && r.Property == OSConfigurationProperty {
		return fmt.Sprintf("%s detected OS configuration drift. ", r.Observer)
	}
	return fmt.Sprintf("%s detected %s threshold breach. ", r.Observer, r.State)
}

func payloadProperty(data any) string {
	if provider, ok := data.(PropertyProvider); ok {
		if prop := provider.HealthProperty(); prop != "" {
			return prop
		}
	}
	return GenericHealthProperty
}
