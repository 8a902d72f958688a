package processor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ecomstream/analytics-pipeline/internal/domain"
)

func newTestAggregator(t *testing.T) (*RealTimeAggregator, *fakeStore, *fakePublisher) {
	t.Helper()

	st := newFakeStore()
	pub := &fakePublisher{}
	rt := NewRealTimeAggregator(st, pub, testLogger())
	return rt, st, pub
}

func lastSnapshot(t *testing.T, pub *fakePublisher) Snapshot {
	t.Helper()

	if len(pub.payloads) == 0 {
		t.Fatal("no snapshot published")
	}
	var snap Snapshot
	if err := json.Unmarshal(pub.payloads[len(pub.payloads)-1], &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	return snap
}

func TestRealTime_SameMinuteAccumulates(t *testing.T) {
	rt, st, pub := newTestAggregator(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 30, 12, 0, time.UTC)
	rt.now = func() time.Time { return now }

	event := &domain.Event{EventID: "e1", EventType: domain.EventPageView}
	for i := 0; i < 5; i++ {
		if err := rt.Record(ctx, event); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	bucket := st.buckets["2026-03-14T10:30"]
	if bucket == nil {
		t.Fatal("minute bucket not created")
	}
	if bucket.Total != 5 || bucket.ByType["page_view"] != 5 {
		t.Errorf("expected total=5 page_view=5, got total=%d page_view=%d",
			bucket.Total, bucket.ByType["page_view"])
	}

	// Every event republishes the full window under the fixed key.
	if len(pub.keys) != 5 {
		t.Fatalf("expected 5 snapshots, got %d", len(pub.keys))
	}
	for _, key := range pub.keys {
		if key != SnapshotKey {
			t.Errorf("snapshot key = %q, want %q", key, SnapshotKey)
		}
	}

	snap := lastSnapshot(t, pub)
	if len(snap.Metrics) != 1 {
		t.Fatalf("expected 1 bucket in window, got %d", len(snap.Metrics))
	}
	if snap.Metrics[0].Total != 5 || snap.Metrics[0].ByType["page_view"] != 5 {
		t.Errorf("unexpected snapshot bucket: %+v", snap.Metrics[0])
	}
}

func TestRealTime_NextMinuteNewBucket(t *testing.T) {
	rt, st, pub := newTestAggregator(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 30, 55, 0, time.UTC)
	rt.now = func() time.Time { return now }

	event := &domain.Event{EventID: "e1", EventType: domain.EventPageView}
	if err := rt.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	now = now.Add(time.Minute)
	if err := rt.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	if len(st.buckets) != 2 {
		t.Fatalf("expected 2 minute buckets, got %d", len(st.buckets))
	}

	snap := lastSnapshot(t, pub)
	if len(snap.Metrics) != 2 {
		t.Errorf("60-minute window should include both buckets, got %d", len(snap.Metrics))
	}
}

func TestRealTime_WindowExcludesOldBuckets(t *testing.T) {
	rt, _, pub := newTestAggregator(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rt.now = func() time.Time { return now }

	event := &domain.Event{EventID: "e1", EventType: domain.EventSearch}
	if err := rt.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	now = now.Add(61 * time.Minute)
	if err := rt.Record(ctx, event); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	snap := lastSnapshot(t, pub)
	if len(snap.Metrics) != 1 {
		t.Fatalf("bucket older than the window should be excluded, got %d buckets", len(snap.Metrics))
	}
	if snap.Metrics[0].Timestamp != "2026-03-14T11:01" {
		t.Errorf("unexpected bucket in window: %+v", snap.Metrics[0])
	}
}

func TestRealTime_PublishFailureSurfaces(t *testing.T) {
	rt, _, pub := newTestAggregator(t)
	pub.err = context.DeadlineExceeded

	err := rt.Record(context.Background(), &domain.Event{EventID: "e1", EventType: domain.EventPageView})
	if err == nil {
		t.Fatal("expected error when snapshot publish fails")
	}
}
