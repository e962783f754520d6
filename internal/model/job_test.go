package model

import "testing"

func TestParseJobState_AcceptsKnownStates(t *testing.T) {
	cases := []struct {
		raw  string
		want JobState
	}{
		{"pending", StatePending},
		{"FINISHED", StateFinished},
		{" failed ", StateFailed},
		{"skipped", StateSkipped},
		{"downloading", StateDownloading},
	}

	for _, tc := range cases {
		got, err := ParseJobState(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parse %q: got %q want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseJobState_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "running", "done"} {
		if _, err := ParseJobState(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestPersisted_ExcludesDownloading(t *testing.T) {
	if StateDownloading.Persisted() {
		t.Fatalf("downloading must never be persisted")
	}
	for _, s := range []JobState{StatePending, StateFinished, StateFailed, StateSkipped} {
		if !s.Persisted() {
			t.Fatalf("expected %q to be persisted", s)
		}
	}
}

func TestOutcomeJobState(t *testing.T) {
	cases := []struct {
		kind OutcomeKind
		want JobState
		ok   bool
	}{
		{OutcomeFinished, StateFinished, true},
		{OutcomeFailed, StateFailed, true},
		{OutcomeSkipped, StateSkipped, true},
		{OutcomePersistenceFailed, "", false},
	}

	for _, tc := range cases {
		got, ok := Outcome{Kind: tc.kind}.JobState()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("kind %q: got (%q, %v) want (%q, %v)", tc.kind, got, ok, tc.want, tc.ok)
		}
	}
}

func TestWorkerStateTerminal(t *testing.T) {
	if WorkerWaiting.Terminal() || WorkerDownloading.Terminal() {
		t.Fatalf("waiting and downloading are not terminal")
	}
	if !WorkerFinished.Terminal() || !WorkerCrashed.Terminal() {
		t.Fatalf("finished and crashed are terminal")
	}
}
