package subscriptions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/budradar/budradar/services/entitlements-service/internal/outbox"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

type memStore struct {
	existing storage.Subscription
	found    bool
	upserts  []storage.Subscription
}

func (m *memStore) GetSubscriptionForUpdate(_ context.Context, _ pgx.Tx, _ string) (storage.Subscription, bool, error) {
	return m.existing, m.found, nil
}

func (m *memStore) UpsertSubscription(_ context.Context, _ pgx.Tx, s storage.Subscription) error {
	m.upserts = append(m.upserts, s)
	return nil
}

type memOutbox struct {
	events []outbox.Event
}

func (m *memOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func TestApplyCanceledWithoutSubscriptionIsNoop(t *testing.T) {
	store := &memStore{found: false}
	ob := &memOutbox{}
	svc := New(store, ob)

	err := svc.ApplyCanceled(context.Background(), nil, "org-1", time.Now().UTC(), "stripe", "cus_1", "sub_1", nil, nil)
	if err != nil {
		t.Fatalf("ApplyCanceled: %v", err)
	}
	if len(store.upserts) != 0 {
		t.Fatalf("expected no upsert for unknown org, got %+v", store.upserts)
	}
	if len(ob.events) != 0 {
		t.Fatalf("expected no event for unknown org, got %+v", ob.events)
	}
}

func TestApplyCanceledKeepsPlanAndEmitsEvent(t *testing.T) {
	store := &memStore{
		existing: storage.Subscription{OrgID: "org-1", Plan: "pro", Addons: []string{"stores_5"}, Status: "active"},
		found:    true,
	}
	ob := &memOutbox{}
	svc := New(store, ob)

	canceledAt := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	err := svc.ApplyCanceled(context.Background(), nil, "org-1", canceledAt, "stripe", "cus_1", "sub_1", nil, nil)
	if err != nil {
		t.Fatalf("ApplyCanceled: %v", err)
	}

	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	got := store.upserts[0]
	if got.Status != "canceled" || got.Plan != "pro" {
		t.Fatalf("upserted status=%q plan=%q", got.Status, got.Plan)
	}

	if len(ob.events) != 1 {
		t.Fatalf("events = %d, want 1", len(ob.events))
	}
	if ob.events[0].EventType != EventSubscriptionCanceled {
		t.Fatalf("event type = %q", ob.events[0].EventType)
	}
	var payload struct {
		OrgID string `json:"org_id"`
		Plan  string `json:"plan"`
	}
	if err := json.Unmarshal(ob.events[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.OrgID != "org-1" || payload.Plan != "pro" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestApplyCanceledTwiceEmitsOnce(t *testing.T) {
	store := &memStore{
		existing: storage.Subscription{OrgID: "org-1", Plan: "pro", Status: "canceled"},
		found:    true,
	}
	ob := &memOutbox{}
	svc := New(store, ob)

	err := svc.ApplyCanceled(context.Background(), nil, "org-1", time.Now().UTC(), "stripe", "cus_1", "sub_1", nil, nil)
	if err != nil {
		t.Fatalf("ApplyCanceled: %v", err)
	}
	if len(ob.events) != 0 {
		t.Fatalf("expected no event for already-canceled subscription, got %+v", ob.events)
	}
}

func TestApplyActivatedSkipsEventWhenEntitlementsUnchanged(t *testing.T) {
	store := &memStore{
		existing: storage.Subscription{OrgID: "org-1", Plan: "pro", Addons: []string{"api", "stores_5"}, Status: "active"},
		found:    true,
	}
	ob := &memOutbox{}
	svc := New(store, ob)

	// Same plan and add-ons in a different order: no fan-out.
	err := svc.ApplyActivated(context.Background(), nil, "org-1", "pro", []string{"stores_5", "api"}, time.Now().UTC(), "stripe", "cus_1", "sub_1", nil, nil)
	if err != nil {
		t.Fatalf("ApplyActivated: %v", err)
	}
	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	if len(ob.events) != 0 {
		t.Fatalf("expected no event for unchanged entitlements, got %+v", ob.events)
	}
}

func TestApplyActivatedEmitsOnPlanChange(t *testing.T) {
	store := &memStore{
		existing: storage.Subscription{OrgID: "org-1", Plan: "starter", Status: "active"},
		found:    true,
	}
	ob := &memOutbox{}
	svc := New(store, ob)

	err := svc.ApplyActivated(context.Background(), nil, "org-1", "pro", nil, time.Now().UTC(), "stripe", "cus_1", "sub_1", nil, nil)
	if err != nil {
		t.Fatalf("ApplyActivated: %v", err)
	}
	if len(ob.events) != 1 {
		t.Fatalf("events = %d, want 1", len(ob.events))
	}
	if ob.events[0].EventType != EventSubscriptionActivated {
		t.Fatalf("event type = %q", ob.events[0].EventType)
	}
	var payload struct {
		Plan      string `json:"plan"`
		MaxStores int    `json:"max_stores"`
	}
	if err := json.Unmarshal(ob.events[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Plan != "pro" || payload.MaxStores != 25 {
		t.Fatalf("payload = %+v", payload)
	}
}
