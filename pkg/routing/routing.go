// Package routing holds the two static routing tables of the pipeline.
//
// The ingress table maps a broker address to a work-queue topic or to the
// index trigger. The result table maps a work-queue topic (or the indexer)
// back to the egress address its answer must be sent to. Both are built once
// at startup and only read afterwards.
package routing

import (
	"fmt"
	"slices"

	"ragbridge/pkg/config"
)

// IndexerOrigin is the result-table key for indexing outcomes.
const IndexerOrigin = "indexer-result"

// Ignored is what Route reports for a source with no ingress entry.
const Ignored = "ignored"

// Kind is the action a routing decision asks for.
type Kind int

const (
	KindIgnored Kind = iota
	KindForward
	KindIndex
)

func (k Kind) String() string {
	switch k {
	case KindForward:
		return "forward"
	case KindIndex:
		return "index"
	default:
		return Ignored
	}
}

// Rule is one static source -> destination entry.
type Rule struct {
	Source      string
	Destination string
}

// Decision is the outcome of routing one ingress message.
type Decision struct {
	Kind        Kind
	Destination string
}

// Table is the read-only pair of routing tables.
type Table struct {
	order   []Rule
	forward map[string]string
	index   string
	results map[string]string
}

// NewTable builds a table from explicit rules.
//
// forward maps ingress addresses to work-queue topics, indexSource is the
// ingress address that triggers indexing, results maps origins to egress
// addresses. Duplicate sources are rejected.
func NewTable(forward []Rule, indexSource string, results []Rule) (*Table, error) {
	t := &Table{
		forward: make(map[string]string, len(forward)),
		index:   indexSource,
		results: make(map[string]string, len(results)),
	}

	for _, rule := range forward {
		if rule.Source == "" || rule.Destination == "" {
			return nil, fmt.Errorf("ingress rule %+v is incomplete", rule)
		}
		if _, exists := t.forward[rule.Source]; exists || rule.Source == indexSource {
			return nil, fmt.Errorf("ingress source %q routed twice", rule.Source)
		}
		t.forward[rule.Source] = rule.Destination
		t.order = append(t.order, rule)
	}

	for _, rule := range results {
		if rule.Source == "" || rule.Destination == "" {
			return nil, fmt.Errorf("result rule %+v is incomplete", rule)
		}
		if _, exists := t.results[rule.Source]; exists {
			return nil, fmt.Errorf("result origin %q routed twice", rule.Source)
		}
		t.results[rule.Source] = rule.Destination
	}

	return t, nil
}

// FromConfig builds the deployment tables from broker and work-queue names.
func FromConfig(cfg *config.Config) (*Table, error) {
	return NewTable(
		[]Rule{
			{Source: cfg.Broker.ChatIn, Destination: cfg.WorkQueue.Chats},
			{Source: cfg.Broker.EmailIn, Destination: cfg.WorkQueue.Email},
		},
		cfg.Broker.IndexIn,
		[]Rule{
			{Source: cfg.WorkQueue.Chats, Destination: cfg.Broker.ChatOut},
			{Source: cfg.WorkQueue.Email, Destination: cfg.Broker.EmailOut},
			{Source: IndexerOrigin, Destination: cfg.Broker.IndexOut},
		},
	)
}

// Route resolves an ingress address. Unknown sources yield KindIgnored.
func (t *Table) Route(source string) Decision {
	if destination, ok := t.forward[source]; ok {
		return Decision{Kind: KindForward, Destination: destination}
	}
	if t.index != "" && source == t.index {
		return Decision{Kind: KindIndex}
	}

	return Decision{Kind: KindIgnored, Destination: Ignored}
}

// Resolve maps a result origin to its egress address.
func (t *Table) Resolve(origin string) (string, bool) {
	destination, ok := t.results[origin]
	return destination, ok
}

// Sources lists the ingress addresses the multiplexer subscribes to, in rule order.
func (t *Table) Sources() []string {
	sources := make([]string, 0, len(t.order)+1)
	for _, rule := range t.order {
		sources = append(sources, rule.Source)
	}
	if t.index != "" {
		sources = append(sources, t.index)
	}

	return sources
}

// Topics lists the distinct work-queue topics in rule order. The poller pops them in this order.
func (t *Table) Topics() []string {
	topics := make([]string, 0, len(t.order))
	for _, rule := range t.order {
		if !slices.Contains(topics, rule.Destination) {
			topics = append(topics, rule.Destination)
		}
	}

	return topics
}
