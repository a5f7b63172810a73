package statusapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"psync/internal/progress"
	"psync/internal/statusapi"
	"psync/internal/store"
)

func newServer(t *testing.T, now time.Time) (*httptest.Server, *store.ProgressRepo, *store.RunRepo, *store.ErrorRepo) {
	t.Helper()
	db, err := store.InitDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	prog := store.NewProgressRepo(db)
	runs := store.NewRunRepo(db)
	errs := store.NewErrorRepo(db)
	h := statusapi.NewRouter(prog, runs, errs, statusapi.Options{
		StaleAfter: time.Minute,
		Now:        func() time.Time { return now },
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, prog, runs, errs
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode
}

func TestProgressNotStarted(t *testing.T) {
	srv, _, _, _ := newServer(t, time.Now())

	var body map[string]any
	if code := getJSON(t, srv.URL+"/api/v1/progress", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["notStarted"] != true || body["stale"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestProgressStale(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	srv, prog, _, _ := newServer(t, at.Add(5*time.Minute))
	_ = prog.Write(progress.Update{Step: 2, Total: 5, Message: "Recording payment 1/2", Status: progress.StatusRunning, UpdatedAt: at})

	var body struct {
		Step    int    `json:"step"`
		Message string `json:"message"`
		Stale   bool   `json:"stale"`
	}
	getJSON(t, srv.URL+"/api/v1/progress", &body)
	if body.Step != 2 || body.Message != "Recording payment 1/2" || !body.Stale {
		t.Errorf("body = %+v", body)
	}
}

func TestRuns(t *testing.T) {
	srv, _, runs, errs := newServer(t, time.Now())
	now := time.Now()
	_ = runs.Insert(&store.Run{ID: "r1", Kind: "reconcile", Input: "a.xml", StartedAt: now, FinishedAt: now})
	_ = errs.Insert(&store.RunError{RunID: "r1", Kind: "network", Message: "timeout", OccurredAt: now})

	var list struct {
		Runs []store.Run `json:"runs"`
	}
	getJSON(t, srv.URL+"/api/v1/runs?limit=5", &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != "r1" {
		t.Errorf("runs = %+v", list.Runs)
	}

	var one struct {
		Run    store.Run        `json:"run"`
		Errors []store.RunError `json:"errors"`
	}
	getJSON(t, srv.URL+"/api/v1/runs/r1", &one)
	if one.Run.Input != "a.xml" || len(one.Errors) != 1 || one.Errors[0].Message != "timeout" {
		t.Errorf("run = %+v", one)
	}

	var missing map[string]string
	if code := getJSON(t, srv.URL+"/api/v1/runs/nope", &missing); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}
