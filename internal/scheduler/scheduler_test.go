package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"mediaflow/internal/execution"
	"mediaflow/internal/store"
)

type fakeSource struct {
	workflows []*store.Workflow
	err       error
}

func (f *fakeSource) ScheduledWorkflows(context.Context) ([]*store.Workflow, error) {
	return f.workflows, f.err
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (f *fakeTrigger) Trigger(_ context.Context, id int64) (*execution.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return &execution.Record{ID: 100 + id, WorkflowID: id}, nil
}

var ignoreNext = cmpopts.IgnoreFields(Entry{}, "Next")

func TestResyncTracksSource(t *testing.T) {
	src := &fakeSource{workflows: []*store.Workflow{
		{ID: 1, Name: "hourly", Schedule: "0 * * * *"},
		{ID: 2, Name: "bad", Schedule: "not a cron"},
		{ID: 3, Name: "nightly", Schedule: " @daily "},
	}}
	s := New(src, &fakeTrigger{}, nil)
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	want := []Entry{
		{WorkflowID: 1, Name: "hourly", Schedule: "0 * * * *"},
		{WorkflowID: 3, Name: "nightly", Schedule: "@daily"},
	}
	if diff := cmp.Diff(want, s.Entries(), ignoreNext); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}

	src.workflows = []*store.Workflow{
		{ID: 1, Name: "hourly", Schedule: "30 * * * *"},
		{ID: 4, Name: "every", Schedule: "@every 10m"},
	}
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	want = []Entry{
		{WorkflowID: 1, Name: "hourly", Schedule: "30 * * * *"},
		{WorkflowID: 4, Name: "every", Schedule: "@every 10m"},
	}
	if diff := cmp.Diff(want, s.Entries(), ignoreNext); diff != "" {
		t.Fatalf("entries after resync mismatch (-want +got):\n%s", diff)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Fatalf("expected 2 cron entries, got %d", n)
	}
}

func TestEntriesOrderedByWorkflowIDAtExtremes(t *testing.T) {
	src := &fakeSource{workflows: []*store.Workflow{
		{ID: math.MaxInt64, Name: "last", Schedule: "@hourly"},
		{ID: -5, Name: "first", Schedule: "@daily"},
		{ID: 1 << 32, Name: "middle", Schedule: "@weekly"},
	}}
	s := New(src, &fakeTrigger{}, nil)
	if err := s.Resync(context.Background()); err != nil {
		t.Fatalf("Resync: %v", err)
	}
	var got []int64
	for _, entry := range s.Entries() {
		got = append(got, entry.WorkflowID)
	}
	if diff := cmp.Diff([]int64{-5, 1 << 32, math.MaxInt64}, got); diff != "" {
		t.Fatalf("entry order mismatch (-want +got):\n%s", diff)
	}
}

func TestResyncSourceError(t *testing.T) {
	s := New(&fakeSource{err: errors.New("db closed")}, &fakeTrigger{}, nil)
	if err := s.Resync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestJobTriggersWorkflow(t *testing.T) {
	src := &fakeSource{workflows: []*store.Workflow{{ID: 7, Name: "w", Schedule: "@hourly"}}}
	trig := &fakeTrigger{}
	s := New(src, trig, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if next := s.Entries()[0].Next; next.IsZero() {
		t.Fatal("expected next run time once started")
	}

	job := s.cron.Entry(s.jobs[7].entryID).Job
	job.Run()
	trig.err = errors.New("workflow inactive")
	job.Run()
	if diff := cmp.Diff([]int64{7, 7}, trig.calls); diff != "" {
		t.Fatalf("trigger calls mismatch (-want +got):\n%s", diff)
	}

	cancel()
	job.Run()
	if len(trig.calls) != 2 {
		t.Fatalf("expected no trigger after context cancellation, got %v", trig.calls)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(&fakeSource{}, &fakeTrigger{}, nil)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestValidate(t *testing.T) {
	for _, ok := range []string{"*/5 * * * *", "@weekly", "@every 1h30m", "0 6 * * mon-fri"} {
		if err := Validate(ok); err != nil {
			t.Errorf("Validate(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "* * *", "61 * * * *", "@sometimes"} {
		if err := Validate(bad); err == nil {
			t.Errorf("Validate(%q) accepted invalid expression", bad)
		}
	}
}
