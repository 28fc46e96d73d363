package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/db"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/fixtures"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/idempotency"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func TestErrorMapping(t *testing.T) {
	if err := notFound(pgx.ErrNoRows, "document"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	other := errors.New("boom")
	if err := notFound(other, "document"); err != other {
		t.Fatalf("unexpected rewrap: %v", err)
	}
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if err := conflict(dup, "document"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := conflict(&pgconn.PgError{Code: "23503"}, "document"); errors.Is(err, domain.ErrConflict) {
		t.Fatalf("foreign key violation is not a conflict")
	}
}

func TestStrs(t *testing.T) {
	if strs[domain.ProjectID](nil) != nil {
		t.Fatalf("empty input must stay nil")
	}
	got := strs([]domain.ProjectID{"a", "b"})
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("strs() = %v", got)
	}
}

func TestLockClause(t *testing.T) {
	if (&pgTx{}).forUpdate() != "" {
		t.Fatalf("views must not lock")
	}
	if (&pgTx{lock: true}).forUpdate() == "" {
		t.Fatalf("updates must lock")
	}
}

// Integration tests run against a scratch database:
// SPMS_INTEGRATION=1 DATABASE_URL=postgres://... go test ./services/workflow/internal/store
func integrationStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if os.Getenv("SPMS_INTEGRATION") != "1" || url == "" {
		t.Skip("set SPMS_INTEGRATION=1 and DATABASE_URL to run")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, db.DefaultOptions(url))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE document_events, report_details, endorsements, documents, annual_reports,
project_members, projects, users, business_areas, workflow_idempotency_records`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	st := New(pool)
	if _, err := fixtures.Load(ctx, st, "../../seed/dev.yaml", true); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func TestIntegrationApprovalAndSpawn(t *testing.T) {
	st := integrationStore(t)
	ctx := context.Background()
	svc := workflow.New(st, workflow.DefaultPolicy(), zerolog.Nop())

	steps := []struct {
		stage domain.Stage
		user  domain.UserID
	}{
		{domain.StageLead, "usr_leader"},
		{domain.StageArea, "usr_area_lead"},
		{domain.StageDirectorate, "usr_director"},
	}
	for _, s := range steps {
		if _, err := svc.Advance(ctx, "doc_quokka_plan", s.stage, s.user); err != nil {
			t.Fatalf("Advance(%d): %v", s.stage, err)
		}
	}
	var project domain.Project
	err := st.View(ctx, func(r workflow.Reader) error {
		var err error
		project, err = r.Project(ctx, "prj_quokka")
		return err
	})
	if err != nil || project.Status != domain.ProjectActive {
		t.Fatalf("project after final approval = %+v, %v", project, err)
	}

	if _, err := svc.Recall(ctx, "doc_quokka_plan", domain.StageLead, "usr_leader"); !errors.Is(err, domain.ErrGuardViolation) {
		t.Fatalf("expected guard violation, got %v", err)
	}

	res, err := svc.SpawnReportingCycle(ctx, "ar_2024", "usr_director")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if len(res.Created) != 3 || len(res.Failed) != 0 {
		t.Fatalf("spawn result = %+v", res)
	}
	again, err := svc.SpawnReportingCycle(ctx, "ar_2024", "usr_director")
	if err != nil || len(again.Created) != 0 {
		t.Fatalf("second spawn = %+v, %v", again, err)
	}

	events, err := svc.Events(ctx, "doc_quokka_plan")
	if err != nil || len(events) != 3 {
		t.Fatalf("events = %d, %v", len(events), err)
	}
}

func TestIntegrationUsersAndIdempotency(t *testing.T) {
	st := integrationStore(t)
	ctx := context.Background()

	u, err := st.UserByTokenHash(ctx, "0000")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %+v %v", u, err)
	}

	rec := idempotency.Record{ActorID: "usr_leader", IdempotencyKey: "k", Endpoint: "POST /x", ResponseStatus: 200, ResponseBody: []byte(`{"ok":true}`)}
	if err := st.SaveIdempotencyRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.ResponseStatus = 500
	if err := st.SaveIdempotencyRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetIdempotencyRecord(ctx, "usr_leader", "k", "POST /x")
	if err != nil || got == nil || got.ResponseStatus != 200 {
		t.Fatalf("first record should win, got %+v %v", got, err)
	}
	missing, err := st.GetIdempotencyRecord(ctx, "usr_leader", "other", "POST /x")
	if err != nil || missing != nil {
		t.Fatalf("expected no record, got %+v %v", missing, err)
	}
}
