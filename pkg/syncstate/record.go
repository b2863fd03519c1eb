// Package syncstate holds the durable sync record: the endpoint URL, the
// optional shared secret, and the selected bookmark identifiers.
package syncstate

import (
	"context"
)

// Record is the full durable record. Writers always write all three keys
// together.
type Record struct {
	EndpointURL  string   `yaml:"endpointUrl" json:"endpointUrl"`
	SelectedIDs  []string `yaml:"selectedIds" json:"selectedIds"`
	SharedSecret string   `yaml:"sharedSecret,omitempty" json:"sharedSecret,omitempty"`
}

// Normalize drops empty and duplicate identifiers, keeping first occurrences.
func (r Record) Normalize() Record {
	out := Record{
		EndpointURL:  r.EndpointURL,
		SharedSecret: r.SharedSecret,
		SelectedIDs:  make([]string, 0, len(r.SelectedIDs)),
	}
	seen := make(map[string]struct{}, len(r.SelectedIDs))
	for _, id := range r.SelectedIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.SelectedIDs = append(out.SelectedIDs, id)
	}
	return out
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	c := r
	c.SelectedIDs = append([]string(nil), r.SelectedIDs...)
	return c
}

// Equal compares two records, including selection order.
func (r Record) Equal(other Record) bool {
	if r.EndpointURL != other.EndpointURL || r.SharedSecret != other.SharedSecret {
		return false
	}
	if len(r.SelectedIDs) != len(other.SelectedIDs) {
		return false
	}
	for i := range r.SelectedIDs {
		if r.SelectedIDs[i] != other.SelectedIDs[i] {
			return false
		}
	}
	return true
}

// Redacted returns a copy safe for logs and status output.
func (r Record) Redacted() Record {
	c := r.Clone()
	if c.SharedSecret != "" {
		c.SharedSecret = "********"
	}
	return c
}

// Origin says where a change came from.
type Origin string

const (
	// OriginLocal is a Write through this store instance.
	OriginLocal Origin = "local"
	// OriginExternal is a change observed on the durable medium, made by
	// another process.
	OriginExternal Origin = "external"
)

// Change is delivered to subscribers after the record changes.
type Change struct {
	Record Record
	Origin Origin
}

// Store is the read/write contract for the durable record. Consumers re-read
// the record whenever they need it instead of caching it across calls.
type Store interface {
	// Read returns the current full record.
	Read(ctx context.Context) (Record, error)
	// Write replaces the full record.
	Write(ctx context.Context, rec Record) error
	// Subscribe returns a buffered channel receiving every change.
	Subscribe() chan Change
	// Unsubscribe removes the subscription and closes the channel.
	Unsubscribe(ch chan Change)
}

// Watcher is implemented by stores whose medium can change underneath them.
// Watch blocks until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) error
}
