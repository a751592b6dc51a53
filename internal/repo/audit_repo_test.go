package repo

import (
	"context"
	"testing"
	"time"

	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

func TestCreateAuditCall_AppendOnly(t *testing.T) {
	db := newRepoDB(t, allModels()...)
	ctx := context.Background()
	u := seedUser(t, db, "8956545791")

	for i := 0; i < 3; i++ {
		a := &domain.AuditCall{
			UserID:     u.ID,
			Endpoint:   "/fidata/fetch-all",
			Method:     "POST",
			HTTPStatus: 200,
			LatencyMs:  int64(10 + i),
			CalledAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := CreateAuditCall(ctx, db, a); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if a.ID == "" {
			t.Fatal("CreateAuditCall must assign an id")
		}
	}

	total, err := CountAuditCalls(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 audit rows, got %d", total)
	}
}

func TestCountAuditCalls_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := CountAuditCalls(context.Background(), db, "u"); err == nil {
		t.Fatal("expected error counting without table")
	}
}

func TestListAuditCallsPage_NewestFirst(t *testing.T) {
	db := newRepoDB(t, allModels()...)
	ctx := context.Background()
	u := seedUser(t, db, "8956545791")

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		a := &domain.AuditCall{
			UserID:   u.ID,
			Endpoint: "/fidata/fetch-all",
			Method:   "POST",
			CalledAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := CreateAuditCall(ctx, db, a); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	page, err := ListAuditCallsPage(ctx, db, u.ID, 0, 2)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if !page[0].CalledAt.After(page[1].CalledAt) {
		t.Fatalf("expected newest first, got %v then %v", page[0].CalledAt, page[1].CalledAt)
	}
}
