package watch

import "sync/atomic"

// RoutingURLBox holds a routing URL that the subgraph-set supervisor can
// update in place without restarting the watcher that reads it (spec.md
// §4.4 step 4: "for entries whose only change is routing_url, emit
// RoutingUrlChanged without restarting"). Grounded on the teacher's
// atomic.Value-backed registry fields in registry/registry.go.
type RoutingURLBox struct {
	v atomic.Pointer[string]
}

// NewRoutingURLBox returns a box initialized to url.
func NewRoutingURLBox(url string) *RoutingURLBox {
	b := &RoutingURLBox{}
	b.Set(url)
	return b
}

func (b *RoutingURLBox) Get() string {
	if p := b.v.Load(); p != nil {
		return *p
	}
	return ""
}

func (b *RoutingURLBox) Set(url string) { b.v.Store(&url) }
