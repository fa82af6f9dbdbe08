package events_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mediaflow/internal/events"
	"mediaflow/internal/execution"
)

type countingRecorder struct {
	observers int
	dropped   int
}

func (r *countingRecorder) ObserversChanged(n int) { r.observers = n }
func (r *countingRecorder) EventDropped()          { r.dropped++ }

func drain(ch <-chan events.Event) []events.Type {
	var out []events.Type
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt.Type)
		default:
			return out
		}
	}
}

func TestPublishPreservesOrderPerObserver(t *testing.T) {
	b := events.NewBroadcaster(16)
	ch, unsubscribe := b.Subscribe(0)
	defer unsubscribe()

	want := []events.Type{events.TypeItemStarted, events.TypeStageUpdate, events.TypeStageUpdate, events.TypeItemCompleted}
	for _, typ := range want {
		b.Publish(events.New(typ, 1, nil))
	}
	if diff := cmp.Diff(want, drain(ch)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSlowObserverIsRemovedWithoutAffectingOthers(t *testing.T) {
	rec := &countingRecorder{}
	b := events.NewBroadcaster(1, events.WithRecorder(rec))
	slow, _ := b.Subscribe(0)
	fast, unsubscribe := b.Subscribe(0)
	defer unsubscribe()

	b.Publish(events.New(events.TypeLog, 1, nil))
	if got := drain(fast); len(got) != 1 {
		t.Fatalf("fast observer got %v", got)
	}
	b.Publish(events.New(events.TypeLog, 1, nil))

	if got := drain(fast); len(got) != 1 {
		t.Fatalf("fast observer missed second event: %v", got)
	}
	if _, ok := <-slow; !ok {
		t.Fatal("slow observer should still receive its buffered event")
	}
	if _, ok := <-slow; ok {
		t.Fatal("slow observer channel should be closed")
	}
	if b.Observers() != 1 || rec.observers != 1 || rec.dropped != 1 {
		t.Fatalf("unexpected accounting: observers=%d rec=%+v", b.Observers(), rec)
	}
}

func TestSubscribeFiltersByExecution(t *testing.T) {
	b := events.NewBroadcaster(4)
	only2, unsubscribe := b.Subscribe(2)
	defer unsubscribe()

	b.Publish(events.New(events.TypeLog, 1, nil))
	b.Publish(events.New(events.TypeWorkflowCompleted, 2, nil))
	if diff := cmp.Diff([]events.Type{events.TypeWorkflowCompleted}, drain(only2)); diff != "" {
		t.Fatalf("filter mismatch:\n%s", diff)
	}
}

func TestUnsubscribeIsIdempotentAndCloseDisconnects(t *testing.T) {
	b := events.NewBroadcaster(4)
	_, unsubscribe := b.Subscribe(0)
	unsubscribe()
	unsubscribe()
	if b.Observers() != 0 {
		t.Fatalf("expected zero observers, got %d", b.Observers())
	}

	ch, _ := b.Subscribe(0)
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after Close")
	}
	late, _ := b.Subscribe(0)
	if _, ok := <-late; ok {
		t.Fatal("expected closed channel for late subscriber")
	}
	b.Publish(events.New(events.TypeLog, 1, nil))
}

func TestEventWireShape(t *testing.T) {
	evt := events.New(events.TypeStageUpdate, 9, events.StageUpdateData{
		ExecutionID: 9, ItemIndex: 0, Stage: "download", Status: execution.StageRunning,
	})
	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"video_stage_update","data":{"execution_id":9,"video_index":0,"stage":"download","status":"running"}}`
	if string(raw) != want {
		t.Fatalf("got %s", raw)
	}
}
