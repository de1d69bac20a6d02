// Package metrics is a small, dependency-free Prometheus text-exposition
// writer in the style of the teacher's hand-rolled /metrics endpoint. ORCA
// has exactly two counters named in the spec (policy.decision.count and
// plugin.verify.failures); a full client_golang dependency would be
// overkill for two label-vectored counters, so this keeps the same plain
// net/http + fmt.Fprintf shape the teacher uses.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// CounterVec is a counter keyed by an ordered set of label values. Label
// names are fixed at construction; label values form the vector key.
type CounterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.Mutex
	values map[string]int64 // joined label values -> count
}

// NewCounterVec creates a counter named name with the given label names,
// in the order they will be rendered.
func NewCounterVec(name, help string, labels ...string) *CounterVec {
	return &CounterVec{
		name:   name,
		help:   help,
		labels: labels,
		values: make(map[string]int64),
	}
}

// Inc increments the counter for the given label values, which must be
// supplied in the same order as the labels passed to NewCounterVec.
func (c *CounterVec) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Add increments the counter for the given label values by n.
func (c *CounterVec) Add(n int64, labelValues ...string) {
	key := strings.Join(labelValues, "\x00")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] += n
}

// Value returns the current count for the given label values.
func (c *CounterVec) Value(labelValues ...string) int64 {
	key := strings.Join(labelValues, "\x00")
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key]
}

func (c *CounterVec) writeTo(w io.Writer) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	snapshot := make(map[string]int64, len(c.values))
	for k, v := range c.values {
		snapshot[k] = v
	}
	c.mu.Unlock()

	fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
	fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
	for _, k := range keys {
		parts := strings.Split(k, "\x00")
		var pairs []string
		for i, label := range c.labels {
			v := ""
			if i < len(parts) {
				v = parts[i]
			}
			pairs = append(pairs, fmt.Sprintf("%s=%q", label, v))
		}
		fmt.Fprintf(w, "%s{%s} %d\n", c.name, strings.Join(pairs, ","), snapshot[k])
	}
}

// Registry collects named counters and renders them in the Prometheus
// text exposition format.
type Registry struct {
	mu       sync.Mutex
	counters []*CounterVec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a counter to the registry. Safe to call concurrently
// with WriteText: both hold r.mu.
func (r *Registry) Register(c *CounterVec) *CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, c)
	return c
}

// WriteText renders every registered counter in Prometheus text format.
func (r *Registry) WriteText(w io.Writer) {
	r.mu.Lock()
	counters := make([]*CounterVec, len(r.counters))
	copy(counters, r.counters)
	r.mu.Unlock()

	for _, c := range counters {
		c.writeTo(w)
	}
}
