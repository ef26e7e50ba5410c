// SPDX-License-Identifier: MIT
/*
Package settings is the boundary to the preference storage. Preferences are
grouped by dsp.Namespace; each namespace is a flat map of keys to primitive
values or delimited strings.

The store tracks which namespaces changed since the last commit. A fresh or
cleared store reports every namespace as changed so the first sync pass
pushes the complete state. A pass works on a State captured once and commits
that same State, so edits landing while the pass runs stay pending.
*/
package settings

import (
	"math"
	"reflect"

	"dspctl/internal/dsp"

	"github.com/spf13/cast"
)

// Section reads typed values from one namespace. Missing keys and values
// that cannot be converted yield the supplied default.
type Section interface {
	Bool(key string, def bool) bool
	Float(key string, def float64) float64
	Int(key string, def int) int
	String(key string, def string) string
}

// Selector gives access to namespace sections.
type Selector interface {
	Select(ns dsp.Namespace) Section
}

// Store is the contract the synchronization driver consumes.
type Store interface {
	Selector
	ChangedNamespaces() dsp.NamespaceSet
	// MarkChangesAsCommitted commits the values held right now.
	MarkChangesAsCommitted()
	// Capture copies every namespace and the changed set atomically.
	Capture() State
	// MarkCommitted commits the values of st, leaving later edits pending.
	MarkCommitted(st State)
	Clear()
}

// State is a point-in-time copy of the store.
type State struct {
	values  map[dsp.Namespace]map[string]any
	changed dsp.NamespaceSet
}

// Select returns the captured section of ns.
func (st State) Select(ns dsp.Namespace) Section {
	return valueSection(st.values[ns])
}

// Changed reports the namespaces that differed from the committed values
// when the State was captured.
func (st State) Changed() dsp.NamespaceSet {
	return st.changed
}

func captureState(current, committed map[dsp.Namespace]map[string]any) State {
	return State{values: copyValues(current), changed: diffNamespaces(current, committed)}
}

// Writer persists values back into the store. Used for capability memos
// that must survive restarts.
type Writer interface {
	Put(ns dsp.Namespace, values map[string]any) error
}

// valueSection implements Section over a plain map.
type valueSection map[string]any

func (s valueSection) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func (s valueSection) Float(key string, def float64) float64 {
	v, ok := s[key]
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return def
	}
	return f
}

// Int accepts integers, integral strings and floats; floats are rounded.
func (s valueSection) Int(key string, def int) int {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch v.(type) {
	case float32, float64:
	default:
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return int(math.Round(f))
}

func (s valueSection) String(key string, def string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return def
	}
	str, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return str
}

// diffNamespaces compares current against committed. A nil committed map
// means nothing was committed yet, so everything is reported.
func diffNamespaces(current, committed map[dsp.Namespace]map[string]any) dsp.NamespaceSet {
	if committed == nil {
		return dsp.FullSet()
	}
	var changed dsp.NamespaceSet
	for _, ns := range dsp.AllNamespaces() {
		if !sameValues(current[ns], committed[ns]) {
			changed = changed.With(ns)
		}
	}
	return changed
}

func sameValues(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func copyValues(m map[dsp.Namespace]map[string]any) map[dsp.Namespace]map[string]any {
	out := make(map[dsp.Namespace]map[string]any, len(m))
	for ns, values := range m {
		c := make(map[string]any, len(values))
		for k, v := range values {
			c[k] = v
		}
		out[ns] = c
	}
	return out
}
