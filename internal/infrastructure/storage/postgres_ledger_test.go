package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"PaperPromoter/internal/domain"
)

func TestSucceededQuery(t *testing.T) {
	t.Parallel()

	query, args, err := succeededQuery("full", []string{"A", "B"})
	if err != nil {
		t.Fatalf("succeededQuery: %v", err)
	}
	want := "SELECT project_id FROM project_runs WHERE mode = $1 AND status = $2 AND project_id = ANY($3)"
	if query != want {
		t.Fatalf("unexpected sql:\n%s\nwant:\n%s", query, want)
	}
	if len(args) != 3 || args[0] != "full" || args[1] != "succeeded" {
		t.Fatalf("unexpected args %v", args)
	}
	if ids, ok := args[2].(pq.StringArray); !ok || len(ids) != 2 {
		t.Fatalf("expected pq.StringArray, got %T", args[2])
	}
}

func TestUpsertQuery(t *testing.T) {
	t.Parallel()

	result := domain.RunResult{
		ProjectID: "A",
		Status:    domain.ResultFailed,
		ErrorKind: domain.KindModelRejected,
		Message:   "policy",
		Duration:  1500 * time.Millisecond,
	}
	query, args, err := upsertQuery("run-1", "baseline:fewshot", result)
	if err != nil {
		t.Fatalf("upsertQuery: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO project_runs (project_id,mode,run_id,status,error_kind,message,output_path,duration_ms) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)") {
		t.Fatalf("unexpected sql: %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (project_id, mode) DO UPDATE") {
		t.Fatalf("expected upsert clause: %s", query)
	}
	if len(args) != 8 || args[3] != "failed" || args[4] != "model_rejected" || args[7] != int64(1500) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestNilDatabaseIsNoop(t *testing.T) {
	t.Parallel()

	l := NewPostgresLedger(nil)
	done, err := l.AlreadySucceeded(context.Background(), "full", []string{"A"})
	if err != nil || len(done) != 0 {
		t.Fatalf("unexpected %v %v", done, err)
	}
	if err := l.SaveResult(context.Background(), "r", "full", domain.RunResult{ProjectID: "A"}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
