// props/props.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package props is the boundary between the traffic subsystem and the
// host simulator's property tree. Values live in nested ordered maps so
// that a saved tree keeps its key order.
package props

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/iancoleman/orderedmap"
)

type Tree struct {
	mu   sync.Mutex
	root *orderedmap.OrderedMap
}

func NewTree() *Tree {
	return &Tree{root: orderedmap.New()}
}

func splitPath(path string) []string {
	var c []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			c = append(c, s)
		}
	}
	return c
}

// child returns the map stored under key in m, creating it if create is
// set. Maps decoded from JSON are stored by value and are replaced with
// pointers the first time they are visited.
func child(m *orderedmap.OrderedMap, key string, create bool) *orderedmap.OrderedMap {
	v, ok := m.Get(key)
	if ok {
		switch c := v.(type) {
		case *orderedmap.OrderedMap:
			return c
		case orderedmap.OrderedMap:
			p := &c
			m.Set(key, p)
			return p
		}
	}
	if !create {
		return nil
	}
	c := orderedmap.New()
	m.Set(key, c)
	return c
}

func (t *Tree) lookupParent(path string, create bool) (*orderedmap.OrderedMap, string) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return nil, ""
	}
	m := t.root
	for _, c := range comps[:len(comps)-1] {
		if m = child(m, c, create); m == nil {
			return nil, ""
		}
	}
	return m, comps[len(comps)-1]
}

// Set stores v at the given path, creating intermediate nodes as needed.
func (t *Tree) Set(path string, v any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, key := t.lookupParent(path, true); m != nil {
		m.Set(key, v)
	}
}

func (t *Tree) Get(path string) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, key := t.lookupParent(path, false)
	if m == nil {
		return nil, false
	}
	return m.Get(key)
}

func (t *Tree) GetBool(path string, def bool) bool {
	v, ok := t.Get(path)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if pb, err := strconv.ParseBool(b); err == nil {
			return pb
		}
	case float64:
		return b != 0
	case int:
		return b != 0
	}
	return def
}

func (t *Tree) GetFloat(path string, def float64) float64 {
	v, ok := t.Get(path)
	if !ok {
		return def
	}
	return asFloat(v, def)
}

func asFloat(v any, def float64) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	case int:
		return float64(f)
	case int64:
		return float64(f)
	case string:
		if pf, err := strconv.ParseFloat(f, 64); err == nil {
			return pf
		}
	}
	return def
}

func (t *Tree) GetString(path string, def string) string {
	v, ok := t.Get(path)
	if !ok {
		return def
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case int:
		return strconv.Itoa(s)
	}
	return def
}

// Remove deletes the node at path and everything below it.
func (t *Tree) Remove(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, key := t.lookupParent(path, false)
	if m == nil {
		return false
	}
	if _, ok := m.Get(key); !ok {
		return false
	}
	m.Delete(key)
	return true
}

// Children returns the names of the nodes directly below path, in
// insertion order.
func (t *Tree) Children(path string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.root
	for _, c := range splitPath(path) {
		if m = child(m, c, false); m == nil {
			return nil
		}
	}
	return append([]string(nil), m.Keys()...)
}

// Node returns a read-only view of the leaves directly below path.
func (t *Tree) Node(path string) Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.root
	for _, c := range splitPath(path) {
		if m = child(m, c, false); m == nil {
			return Node{}
		}
	}
	n := Node{values: make(map[string]any)}
	for _, k := range m.Keys() {
		if v, ok := m.Get(k); ok {
			switch v.(type) {
			case *orderedmap.OrderedMap, orderedmap.OrderedMap:
			default:
				n.values[k] = v
			}
		}
	}
	return n
}

func (t *Tree) Save(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.root)
}

func (t *Tree) Load(r io.Reader) error {
	root := orderedmap.New()
	if err := json.NewDecoder(r).Decode(root); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = root
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Node

// Node holds the leaf values of one property node; it is how data such
// as performance overrides are handed to constructors.
type Node struct {
	values map[string]any
}

func MakeNode(values map[string]any) Node {
	return Node{values: values}
}

func (n Node) Has(key string) bool {
	_, ok := n.values[key]
	return ok
}

func (n Node) Float(key string, def float64) float64 {
	if v, ok := n.values[key]; ok {
		return asFloat(v, def)
	}
	return def
}

func (n Node) String(key string, def string) string {
	if v, ok := n.values[key].(string); ok {
		return v
	}
	return def
}

func (n Node) Len() int {
	return len(n.values)
}
