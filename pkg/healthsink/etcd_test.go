package healthsink

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/NCarlsonMSFT/service-fabric-observer/internal/testutil"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

func TestEtcdSinkRoundTrip(t *testing.T) {
	cluster := testutil.StartEmbeddedEtcd(t)

	sink, err := NewEtcdSink(EtcdSinkOptions{
		Endpoints: cluster.Endpoints,
		Namespace: "fabricobserver",
		Prefix:    "cluster_health",
	})
	if err != nil {
		t.Fatalf("failed to create health sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()

	records, err := sink.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected status query error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	target, err := report.NewNodeTarget("node-0")
	if err != nil {
		t.Fatalf("failed to build target: %v", err)
	}
	entry := Entry{
		SourceID:          "DiskObserver",
		Property:          "DiskHealth",
		State:             report.StateWarning,
		Description:       "DiskObserver detected Warning threshold breach. disk usage 91%",
		TTL:               time.Minute,
		RemoveWhenExpired: true,
	}
	if err := sink.ReportHealth(ctx, target, entry); err != nil {
		t.Fatalf("failed to report health: %v", err)
	}

	records, err = sink.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected status query error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec.Target != target.Key() {
		t.Fatalf("expected target %s, got %s", target.Key(), rec.Target)
	}
	if rec.SourceID != "DiskObserver" || rec.Property != "DiskHealth" {
		t.Fatalf("unexpected record identity: %+v", rec)
	}
	if rec.State != report.StateWarning {
		t.Fatalf("expected Warning state, got %s", rec.State)
	}
	if !strings.Contains(rec.Description, "disk usage 91%") {
		t.Fatalf("unexpected description: %q", rec.Description)
	}
	if time.Since(rec.ReportedAt) > time.Minute {
		t.Fatalf("expected recent reported timestamp, got %s", rec.ReportedAt)
	}
}

func TestEtcdSinkLastWriteWinsPerSourceAndProperty(t *testing.T) {
	cluster := testutil.StartEmbeddedEtcd(t)

	sink, err := NewEtcdSink(EtcdSinkOptions{Endpoints: cluster.Endpoints})
	if err != nil {
		t.Fatalf("failed to create health sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	partition := uuid.New()
	target, err := report.NewStatefulReplicaTarget(partition, 42)
	if err != nil {
		t.Fatalf("failed to build target: %v", err)
	}

	warning := Entry{SourceID: "AppObserver", Property: "ApplicationHealth", State: report.StateWarning, Description: "warn"}
	if err := sink.ReportHealth(ctx, target, warning); err != nil {
		t.Fatalf("failed to report warning: %v", err)
	}

	cleared := warning
	cleared.State = report.StateOk
	cleared.Description = "recovered"
	cleared.SendImmediately = true
	if err := sink.ReportHealth(ctx, target, cleared); err != nil {
		t.Fatalf("failed to report ok: %v", err)
	}

	other := warning
	other.Property = "MemoryHealth"
	if err := sink.ReportHealth(ctx, target, other); err != nil {
		t.Fatalf("failed to report second property: %v", err)
	}

	records, err := sink.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected status query error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two records (one per property), got %d", len(records))
	}

	states := map[string]report.State{}
	for _, rec := range records {
		states[rec.Property] = rec.State
	}
	if states["ApplicationHealth"] != report.StateOk {
		t.Fatalf("expected latest write to win for ApplicationHealth, got %s", states["ApplicationHealth"])
	}
	if states["MemoryHealth"] != report.StateWarning {
		t.Fatalf("expected MemoryHealth record preserved, got %s", states["MemoryHealth"])
	}
}

func TestEtcdSinkExpiresLeasedEntries(t *testing.T) {
	if testing.Short() {
		t.Skip("lease expiry test sleeps for several seconds")
	}

	cluster := testutil.StartEmbeddedEtcd(t)

	sink, err := NewEtcdSink(EtcdSinkOptions{Endpoints: cluster.Endpoints})
	if err != nil {
		t.Fatalf("failed to create health sink: %v", err)
	}
	defer sink.Close()

	ctx := context.Background()
	target, err := report.NewNodeTarget("node-0")
	if err != nil {
		t.Fatalf("failed to build target: %v", err)
	}

	entry := Entry{
		SourceID:          "NodeObserver",
		Property:          "MachineResourceHealth",
		State:             report.StateError,
		TTL:               time.Second,
		RemoveWhenExpired: true,
	}
	if err := sink.ReportHealth(ctx, target, entry); err != nil {
		t.Fatalf("failed to report health: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		records, err := sink.Status(ctx)
		if err != nil {
			t.Fatalf("unexpected status query error: %v", err)
		}
		if len(records) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected leased entry to expire, still have %d records", len(records))
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func TestNewEtcdSinkRequiresEndpoints(t *testing.T) {
	if _, err := NewEtcdSink(EtcdSinkOptions{}); err == nil {
		t.Fatal("expected error when endpoints are missing")
	}
}
