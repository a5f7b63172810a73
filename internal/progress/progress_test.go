package progress_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"psync/internal/progress"
)

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestReadReportsNotStarted(t *testing.T) {
	sink := progress.NewFileSink(filepath.Join(t.TempDir(), "progress.txt"))
	snap, err := progress.Read(sink)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !snap.NotStarted {
		t.Errorf("snapshot = %+v, want NotStarted", snap)
	}
	if snap.Stale(time.Now(), time.Second) {
		t.Error("a run that never started must not be stale")
	}
}

func TestFileSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := progress.NewReporter(fixedNow(at), progress.NewFileSink(path))

	if err := r.Publish(2, 5, "Creating invoice | draft", progress.StatusRunning); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "2|5|Creating invoice | draft|running" {
		t.Errorf("file = %q", raw)
	}

	snap, err := progress.Read(progress.NewFileSink(path))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if snap.Step != 2 || snap.Total != 5 || snap.Message != "Creating invoice | draft" || snap.Status != progress.StatusRunning {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", snap.UpdatedAt, at)
	}
	if !snap.Stale(at.Add(2*time.Minute), time.Minute) {
		t.Error("snapshot should be stale after two minutes")
	}
	if snap.Stale(at.Add(30*time.Second), time.Minute) {
		t.Error("snapshot should be fresh after thirty seconds")
	}
}

func TestStepsNeverDecrease(t *testing.T) {
	sink := progress.NewChannelSink(4)
	r := progress.NewReporter(fixedNow(time.Now()), sink)

	_ = r.Publish(3, 5, "payments", progress.StatusRunning)
	_ = r.Publish(1, 5, "late", progress.StatusRunning)

	u, ok, _ := sink.Read()
	if !ok || u.Step != 3 {
		t.Errorf("last update = %+v, want step 3", u)
	}
	if r.Step() != 3 {
		t.Errorf("Step() = %d, want 3", r.Step())
	}
}

func TestStartClearsPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	sink := progress.NewFileSink(path)
	r := progress.NewReporter(nil, sink)

	_ = r.Publish(5, 5, "done", progress.StatusSuccess)
	if err := r.Start(5, "Starting sync"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	snap, _ := progress.Read(sink)
	if snap.Step != 0 || snap.Message != "Starting sync" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestChannelSinkDropsOldest(t *testing.T) {
	sink := progress.NewChannelSink(1)
	_ = sink.Write(progress.Update{Step: 1})
	_ = sink.Write(progress.Update{Step: 2})

	got := <-sink.Updates()
	if got.Step != 2 {
		t.Errorf("received step %d, want 2", got.Step)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, line := range []string{"", "1|2|x", "a|2|x|running", "1|b|x|running"} {
		if _, err := progress.Parse(line); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", line)
		}
	}
}

func TestFileSinkClearMissing(t *testing.T) {
	sink := progress.NewFileSink(filepath.Join(t.TempDir(), "none.txt"))
	if err := sink.Clear(); err != nil {
		t.Errorf("Clear() error = %v", err)
	}
}
