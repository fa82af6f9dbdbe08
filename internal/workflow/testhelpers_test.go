package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mediaflow/internal/config"
	"mediaflow/internal/events"
	"mediaflow/internal/execution"
	"mediaflow/internal/graph"
	"mediaflow/internal/metrics"
	"mediaflow/internal/notifications"
	"mediaflow/internal/stage"
	"mediaflow/internal/store"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

type harness struct {
	t        *testing.T
	cfg      *config.Config
	store    *store.Store
	registry *stage.Registry
	engine   *workflow.Engine
	notifier *recordingNotifier
	metrics  *metrics.Metrics

	mu           sync.Mutex
	items        []stage.Item
	discoveryErr error
	hooks        map[string]func(context.Context, stage.Request) error
}

func newHarness(t *testing.T, items []stage.Item, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	for _, fn := range mutate {
		fn(cfg)
	}
	h := &harness{
		t:        t,
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		registry: stage.NewRegistry(),
		notifier: &recordingNotifier{},
		metrics:  metrics.New(),
		items:    items,
		hooks:    make(map[string]func(context.Context, stage.Request) error),
	}

	must(t, h.registry.RegisterDiscovery("scan", stage.DiscovererFunc(func(ctx context.Context, req stage.Request) ([]stage.Item, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.discoveryErr != nil {
			return nil, h.discoveryErr
		}
		return append([]stage.Item(nil), h.items...), nil
	})))
	must(t, h.registry.Register("download", stage.CapabilityFetch, h.stub("download", func(ctx context.Context, req stage.Request) error {
		req.Item.Download = &stage.Download{
			VideoFile: fmt.Sprintf("/videos/%s.mp4", req.Item.Item.ID),
			Title:     req.Item.Item.Title,
			URL:       req.Item.Item.URL,
		}
		return nil
	})))
	must(t, h.registry.Register("burn", stage.CapabilityPostProcess, h.stub("burn", func(ctx context.Context, req stage.Request) error {
		req.Item.ProcessedFile = req.Item.SourceVideo() + ".burned"
		return nil
	})))
	must(t, h.registry.Register("upload", stage.CapabilityPublish, h.stub("upload", func(ctx context.Context, req stage.Request) error {
		req.Item.Uploads = append(req.Item.Uploads, stage.UploadResult{Platform: "test", Target: "simulate", Location: req.Item.SourceVideo()})
		return nil
	})))

	h.engine = workflow.NewEngine(cfg, h.store, h.registry,
		workflow.WithNotifier(h.notifier),
		workflow.WithMetrics(h.metrics),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.engine.Stop(ctx)
	})
	return h
}

// stub returns a handler that runs the hook registered for name, or def.
func (h *harness) stub(name string, def func(context.Context, stage.Request) error) stage.Handler {
	return stage.HandlerFunc(func(ctx context.Context, req stage.Request) error {
		h.mu.Lock()
		hook := h.hooks[name]
		h.mu.Unlock()
		if hook != nil {
			return hook(ctx, req)
		}
		return def(ctx, req)
	})
}

func (h *harness) hook(name string, fn func(context.Context, stage.Request) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[name] = fn
}

func (h *harness) setDiscoveryError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discoveryErr = err
}

// run stores def, triggers it and waits for the terminal event.
func (h *harness) run(def graph.Definition) (*execution.Record, []events.Event) {
	h.t.Helper()
	wf := testsupport.NewWorkflow(h.t, h.store, "test", def)

	ch, unsubscribe := h.engine.Broadcaster().Subscribe(0)
	defer unsubscribe()

	rec, err := h.engine.Trigger(context.Background(), wf.ID)
	if err != nil {
		h.t.Fatalf("Trigger: %v", err)
	}
	evts := collectUntilDone(h.t, ch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.engine.Wait(ctx, rec.ID); err != nil {
		h.t.Fatalf("Wait: %v", err)
	}
	final, err := h.store.GetExecution(context.Background(), rec.ID)
	if err != nil {
		h.t.Fatalf("GetExecution: %v", err)
	}
	return final, evts
}

func collectUntilDone(t *testing.T, ch <-chan events.Event) []events.Event {
	t.Helper()
	timeout := time.After(10 * time.Second)
	var out []events.Event
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed after %d events", len(out))
			}
			out = append(out, evt)
			if evt.Type == events.TypeWorkflowCompleted || evt.Type == events.TypeWorkflowFailed {
				return out
			}
		case <-timeout:
			t.Fatalf("timed out waiting for workflow completion after %d events", len(out))
		}
	}
}

func itemsNamed(ids ...string) []stage.Item {
	out := make([]stage.Item, len(ids))
	for i, id := range ids {
		out[i] = stage.Item{ID: id, Title: "Video " + id, URL: "https://example.com/watch?v=" + id}
	}
	return out
}

func itemStatuses(rec *execution.Record) []execution.ItemStatus {
	out := make([]execution.ItemStatus, len(rec.Results.ScannedVideos))
	for i, p := range rec.Results.ScannedVideos {
		out[i] = p.Status
	}
	return out
}

func ofType(evts []events.Event, types ...events.Type) []events.Event {
	var out []events.Event
	for _, evt := range evts {
		for _, typ := range types {
			if evt.Type == typ {
				out = append(out, evt)
				break
			}
		}
	}
	return out
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

type notification struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) events() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifications.Event, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.event
	}
	return out
}
