package services

import (
	"context"
	"testing"

	"github.com/finvista/go-aa-sync-backend/internal/repo"
)

func TestRawCapture_Record(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	u, err := repo.UpsertUser(ctx, db, testIdentity)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	stage := &RawCaptureStage{DB: db}

	call, err := stage.Record(ctx, u.ID, "/fidata/fetch-all", "POST",
		`{"uniqueIdentifier":"8956545791"}`, `{"providers":[]}`, 200, 42)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if call.ID == "" || call.CalledAt.IsZero() {
		t.Fatalf("record must assign id and timestamp, got %+v", call)
	}

	total, err := repo.CountAuditCalls(ctx, db, u.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 audit row, got %d", total)
	}
}

func TestRawCapture_Record_StorageFailure(t *testing.T) {
	db := newServiceDB(t)
	if err := db.Migrator().DropTable("audit_calls"); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	stage := &RawCaptureStage{DB: db}

	if _, err := stage.Record(context.Background(), "u", "/x", "POST", "", "", 200, 1); err == nil {
		t.Fatal("expected an error once the table is gone")
	}
}
