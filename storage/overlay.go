package storage

import (
	"bytes"
	"sort"
)

type entry struct {
	value   []byte
	deleted bool
}

// Overlay buffers writes over a read-only base. Writes go to the top
// of a stack of transaction layers; Commit folds the top layer into
// the one below it and Rollback discards it.
//
// An Overlay is owned by one execution and is not safe for concurrent
// use.
type Overlay struct {
	base   Reader
	layers []map[string]*entry
}

// NewOverlay returns an overlay over base with no open transaction.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, layers: []map[string]*entry{{}}}
}

func (o *Overlay) top() map[string]*entry { return o.layers[len(o.layers)-1] }

// Get reads through the layers, newest first, then the base.
func (o *Overlay) Get(key []byte) ([]byte, bool) {
	k := string(key)
	for i := len(o.layers) - 1; i >= 0; i-- {
		if e, ok := o.layers[i][k]; ok {
			if e.deleted {
				return nil, false
			}
			return e.value, true
		}
	}
	return o.base.Get(key)
}

// Set writes value under key. The value is copied.
func (o *Overlay) Set(key, value []byte) {
	o.top()[string(key)] = &entry{value: append([]byte{}, value...)}
}

// Delete removes key.
func (o *Overlay) Delete(key []byte) {
	o.top()[string(key)] = &entry{deleted: true}
}

// ClearPrefix deletes every key with prefix and returns how many keys
// were removed.
func (o *Overlay) ClearPrefix(prefix []byte) int {
	var keys [][]byte
	o.Iterate(prefix, func(k, _ []byte) bool {
		keys = append(keys, append([]byte{}, k...))
		return true
	})
	for _, k := range keys {
		o.Delete(k)
	}
	return len(keys)
}

// Iterate visits the merged view in ascending key order.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	for _, c := range merged(o.base, prefix, o.flatten()) {
		if !fn(c.Key, c.Value) {
			return
		}
	}
}

// Begin opens a nested transaction.
func (o *Overlay) Begin() {
	o.layers = append(o.layers, map[string]*entry{})
}

// Depth returns the number of open transactions.
func (o *Overlay) Depth() int { return len(o.layers) - 1 }

// Commit folds the innermost transaction into its parent.
func (o *Overlay) Commit() error {
	if len(o.layers) < 2 {
		return ErrNoTransaction
	}
	top := o.top()
	o.layers = o.layers[:len(o.layers)-1]
	parent := o.top()
	for k, e := range top {
		parent[k] = e
	}
	return nil
}

// Rollback discards the innermost transaction.
func (o *Overlay) Rollback() error {
	if len(o.layers) < 2 {
		return ErrNoTransaction
	}
	o.layers = o.layers[:len(o.layers)-1]
	return nil
}

// Transactional runs fn in a nested transaction, committing it when fn
// returns nil and rolling it back otherwise.
func (o *Overlay) Transactional(fn func() error) error {
	o.Begin()
	if err := fn(); err != nil {
		_ = o.Rollback()
		return err
	}
	return o.Commit()
}

func (o *Overlay) flatten() map[string]*entry {
	if len(o.layers) == 1 {
		return o.layers[0]
	}
	out := make(map[string]*entry)
	for _, l := range o.layers {
		for k, e := range l {
			out[k] = e
		}
	}
	return out
}

// Changes returns every buffered write, including those of open
// transactions, sorted by key.
func (o *Overlay) Changes() ChangeSet {
	flat := o.flatten()
	out := make(ChangeSet, 0, len(flat))
	for k, e := range flat {
		c := Change{Key: []byte(k), Deleted: e.deleted}
		if !e.deleted {
			c.Value = e.value
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}
