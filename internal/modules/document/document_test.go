package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"truckmatch/internal/clock"
	"truckmatch/internal/types"
)

func TestCurrentlyValid(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	cases := []struct {
		name string
		doc  Document
		want bool
	}{
		{"valid no expiry", Document{Status: StatusValid}, true},
		{"valid future expiry", Document{Status: StatusValid, ExpirationDate: &future}, true},
		{"valid expires now", Document{Status: StatusValid, ExpirationDate: &now}, false},
		{"valid past expiry", Document{Status: StatusValid, ExpirationDate: &past}, false},
		{"pending review", Document{Status: StatusPendingReview}, false},
		{"rejected", Document{Status: StatusRejected, ExpirationDate: &future}, false},
		{"expired status", Document{Status: StatusExpired}, false},
	}
	for _, tc := range cases {
		if got := tc.doc.CurrentlyValid(now); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilterValidKeepsOrder(t *testing.T) {
	now := time.Now()
	docs := []Document{
		{ID: "a", Status: StatusValid},
		{ID: "b", Status: StatusRejected},
		{ID: "c", Status: StatusValid},
	}
	got := FilterValid(docs, now)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
}

type memRepo struct {
	docs []Document
}

func (m *memRepo) Create(_ context.Context, d *Document) error {
	m.docs = append(m.docs, *d)
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			d := m.docs[i]
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) ListByOwner(_ context.Context, owner Owner) ([]Document, error) {
	var out []Document
	for _, d := range m.docs {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) SetStatus(_ context.Context, id types.ID, status Status, at time.Time) error {
	for i := range m.docs {
		if m.docs[i].ID == id {
			m.docs[i].Status, m.docs[i].UpdatedAt = status, at
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for i := range m.docs {
		d := &m.docs[i]
		if d.Status != StatusExpired && d.ExpirationDate != nil && !d.ExpirationDate.After(now) {
			d.Status, d.UpdatedAt = StatusExpired, now
			n++
		}
	}
	return n, nil
}

func TestTypeValid(t *testing.T) {
	for _, typ := range AllTypes {
		if !typ.Valid() {
			t.Errorf("%s should be a known type", typ)
		}
	}
	if TypeInsurance != "insurance" || TypeMedicalCertificate != "medical_certificate" {
		t.Fatalf("unexpected type values %q %q", TypeInsurance, TypeMedicalCertificate)
	}
	for _, typ := range []Type{"", "passport", "Insurance"} {
		if typ.Valid() {
			t.Errorf("%q should be rejected", typ)
		}
	}
}

func TestExpireDue(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	repo := &memRepo{docs: []Document{
		{ID: "lapsed", Status: StatusValid, ExpirationDate: &past},
		{ID: "due-now", Status: StatusPendingReview, ExpirationDate: &now},
		{ID: "current", Status: StatusValid, ExpirationDate: &future},
		{ID: "open-ended", Status: StatusValid},
		{ID: "already", Status: StatusExpired, ExpirationDate: &past},
	}}
	svc := NewService(repo, clock.Fake(now), slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := svc.ExpireDue(context.Background())
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 2 {
		t.Fatalf("expired %d documents, want 2", n)
	}
	want := map[types.ID]Status{
		"lapsed": StatusExpired, "due-now": StatusExpired, "current": StatusValid,
		"open-ended": StatusValid, "already": StatusExpired,
	}
	for _, d := range repo.docs {
		if d.Status != want[d.ID] {
			t.Errorf("%s: status %s, want %s", d.ID, d.Status, want[d.ID])
		}
	}
	if n, _ := svc.ExpireDue(context.Background()); n != 0 {
		t.Fatalf("second sweep expired %d", n)
	}
}

func TestRunExpiryTickerStopsOnCancel(t *testing.T) {
	svc := NewService(&memRepo{}, clock.Fake(time.Now()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunExpiryTicker(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ticker did not stop")
	}
}

func TestAttachAndReview(t *testing.T) {
	svc := NewService(&memRepo{}, clock.Fake(time.Now()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	d, err := svc.Attach(ctx, AttachCommand{Owner: DriverOwner("d1"), Type: "license", URL: "https://files/x.pdf"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if d.Status != StatusPendingReview {
		t.Fatalf("expected pending_review default, got %s", d.Status)
	}
	if _, err := svc.SetStatus(ctx, d.ID, StatusValid); err != nil {
		t.Fatalf("set status: %v", err)
	}
	docs, err := svc.ListByOwner(ctx, DriverOwner("d1"))
	if err != nil || len(docs) != 1 || docs[0].Status != StatusValid {
		t.Fatalf("unexpected list: %+v, %v", docs, err)
	}
	if docs, _ := svc.ListByOwner(ctx, UnitOwner("d1")); len(docs) != 0 {
		t.Fatalf("unit owner with same id must not see driver documents")
	}
}

func TestAttachValidation(t *testing.T) {
	svc := NewService(&memRepo{}, clock.Fake(time.Now()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	cases := []AttachCommand{
		{Owner: Owner{Kind: "fleet", ID: "x"}, Type: "license", URL: "u"},
		{Owner: DriverOwner(""), Type: "license", URL: "u"},
		{Owner: DriverOwner("d1"), Type: "passport", URL: "u"},
		{Owner: DriverOwner("d1"), Type: "license", URL: "u", Status: "lost"},
	}
	for i, cmd := range cases {
		if _, err := svc.Attach(context.Background(), cmd); !errors.Is(err, types.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}
