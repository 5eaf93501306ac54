package policy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Blocklist is an ordered set of opaque app identifiers.
type Blocklist struct {
	ids   []string
	index map[string]struct{}
}

// NewBlocklist builds a blocklist, dropping blanks and duplicates but keeping order.
func NewBlocklist(ids ...string) Blocklist {
	b := Blocklist{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := b.index[id]; ok {
			continue
		}
		b.index[id] = struct{}{}
		b.ids = append(b.ids, id)
	}
	return b
}

// ParseBlocklist decodes the persisted JSON array.
// Anything unparsable yields an empty blocklist so corrupt state never blocks.
func ParseBlocklist(raw string) Blocklist {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return NewBlocklist()
	}
	return NewBlocklist(ids...)
}

// Encode returns the persisted JSON form.
func (b Blocklist) Encode() (string, error) {
	ids := b.ids
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("failed to encode blocklist: %w", err)
	}
	return string(data), nil
}

// Contains reports membership.
func (b Blocklist) Contains(id string) bool {
	_, ok := b.index[id]
	return ok
}

// Len returns the number of identifiers.
func (b Blocklist) Len() int {
	return len(b.ids)
}

// List returns the identifiers in insertion order.
func (b Blocklist) List() []string {
	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out
}
