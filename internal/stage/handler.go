package stage

import "context"

// Capability groups stage types by the role they play in a pipeline.
type Capability string

const (
	CapabilityDiscovery   Capability = "discovery"
	CapabilityFetch       Capability = "fetch"
	CapabilityPostProcess Capability = "post_process"
	CapabilityPublish     Capability = "publish"
)

// Reporter receives human readable progress lines from a handler. Lines end
// up in the execution log and the broadcast event stream.
type Reporter interface {
	Info(message string)
	Warn(message string)
}

// Request is the input to one handler invocation.
type Request struct {
	// ExecutionID is zero when the handler runs outside an execution.
	ExecutionID int64
	NodeID      string
	Config      Config
	// Item is nil for discovery calls.
	Item   *ItemContext
	Report Reporter
}

// Handler performs a pipeline stage against one item. It reads the fields of
// req.Item produced by earlier stages and writes its own outputs there. On
// failure the coordinator discards every write made during the call.
type Handler interface {
	Execute(ctx context.Context, req Request) error
}

// Discoverer produces the items an execution will process.
type Discoverer interface {
	Discover(ctx context.Context, req Request) ([]Item, error)
}

// SchemaProvider is implemented by handlers that validate node configuration
// with a JSON schema document.
type SchemaProvider interface {
	ConfigSchema() map[string]any
}

// HealthChecker is implemented by handlers that depend on external tools.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, req Request) error

func (f HandlerFunc) Execute(ctx context.Context, req Request) error { return f(ctx, req) }

// DiscovererFunc adapts a function into a Discoverer.
type DiscovererFunc func(ctx context.Context, req Request) ([]Item, error)

func (f DiscovererFunc) Discover(ctx context.Context, req Request) ([]Item, error) {
	return f(ctx, req)
}

type nopReporter struct{}

func (nopReporter) Info(string) {}
func (nopReporter) Warn(string) {}

// NopReporter discards progress lines.
func NopReporter() Reporter { return nopReporter{} }
