package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/blockberries/rtcore/hashing"
)

// Entry describes a storage item for runtime metadata.
type Entry struct {
	Module string `cbor:"module"`
	Name   string `cbor:"name"`
	Kind   string `cbor:"kind"`
	Key    string `cbor:"key,omitempty"`
	Hasher string `cbor:"hasher,omitempty"`
	Value  string `cbor:"value"`
	Prefix string `cbor:"prefix"`
}

// Value is a single typed value under a fixed key.
type Value[T any] struct {
	module, name string
	key          []byte
}

// NewValue declares a value stored at ItemPrefix(module, name).
func NewValue[T any](module, name string) Value[T] {
	return Value[T]{module: module, name: name, key: ItemPrefix(module, name)}
}

// NewWellKnown declares a value stored at a fixed raw key that
// components outside the runtime read directly.
func NewWellKnown[T any](module, name string, key []byte) Value[T] {
	return Value[T]{module: module, name: name, key: append([]byte(nil), key...)}
}

// Key returns the raw storage key.
func (v Value[T]) Key() []byte { return v.key }

// Get returns the stored value, or the zero value and false.
func (v Value[T]) Get(r Reader) (T, bool) {
	bz, ok := r.Get(v.key)
	if !ok {
		var zero T
		return zero, false
	}
	return decodeValue[T](v.module+"::"+v.name, bz), true
}

// Load returns the stored value or the zero value.
func (v Value[T]) Load(r Reader) T {
	out, _ := v.Get(r)
	return out
}

// Exists reports whether a value is stored.
func (v Value[T]) Exists(r Reader) bool {
	_, ok := r.Get(v.key)
	return ok
}

// Put stores val.
func (v Value[T]) Put(s Store, val T) { s.Set(v.key, encodeValue(val)) }

// Kill removes the value.
func (v Value[T]) Kill(s Store) { s.Delete(v.key) }

// Take returns the stored value and removes it.
func (v Value[T]) Take(s Store) (T, bool) {
	out, ok := v.Get(s)
	if ok {
		v.Kill(s)
	}
	return out, ok
}

// Mutate loads the value, applies fn and stores the result.
func (v Value[T]) Mutate(s Store, fn func(*T)) {
	cur := v.Load(s)
	fn(&cur)
	v.Put(s, cur)
}

func (v Value[T]) Entry() Entry {
	var zero T
	return Entry{
		Module: v.module,
		Name:   v.name,
		Kind:   "plain",
		Value:  fmt.Sprintf("%T", zero),
		Prefix: hex.EncodeToString(v.key),
	}
}

// Map is a typed map under ItemPrefix(module, name). Entries live at
// prefix ++ hasher(codec(key)).
type Map[K, V any] struct {
	module, name string
	prefix       []byte
	hasher       hashing.Hasher
	codec        KeyCodec[K]
}

// NewMap declares a map.
func NewMap[K, V any](module, name string, hasher hashing.Hasher, codec KeyCodec[K]) Map[K, V] {
	return Map[K, V]{
		module: module,
		name:   name,
		prefix: ItemPrefix(module, name),
		hasher: hasher,
		codec:  codec,
	}
}

// Prefix returns the key prefix of all entries.
func (m Map[K, V]) Prefix() []byte { return m.prefix }

// Key returns the raw storage key of k.
func (m Map[K, V]) Key(k K) []byte {
	return append(append([]byte(nil), m.prefix...), m.hasher.Hash(m.codec.Encode(k))...)
}

// Get returns the entry for k.
func (m Map[K, V]) Get(r Reader, k K) (V, bool) {
	bz, ok := r.Get(m.Key(k))
	if !ok {
		var zero V
		return zero, false
	}
	return decodeValue[V](m.module+"::"+m.name, bz), true
}

// Load returns the entry for k or the zero value.
func (m Map[K, V]) Load(r Reader, k K) V {
	out, _ := m.Get(r, k)
	return out
}

// Contains reports whether k has an entry.
func (m Map[K, V]) Contains(r Reader, k K) bool {
	_, ok := r.Get(m.Key(k))
	return ok
}

// Insert stores v under k.
func (m Map[K, V]) Insert(s Store, k K, v V) { s.Set(m.Key(k), encodeValue(v)) }

// Remove deletes the entry for k.
func (m Map[K, V]) Remove(s Store, k K) { s.Delete(m.Key(k)) }

// Iterate visits entries in hashed-key order until fn returns false.
func (m Map[K, V]) Iterate(r Reader, fn func(K, V) bool) {
	where := m.module + "::" + m.name
	r.Iterate(m.prefix, func(key, value []byte) bool {
		k, ok := m.codec.Decode(m.hasher.Strip(key[len(m.prefix):]))
		if !ok {
			panic(fmt.Sprintf("storage: corrupt key at %s: %x", where, key))
		}
		return fn(k, decodeValue[V](where, value))
	})
}

// Clear removes every entry.
func (m Map[K, V]) Clear(s Store) {
	var keys [][]byte
	s.Iterate(m.prefix, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	for _, k := range keys {
		s.Delete(k)
	}
}

func (m Map[K, V]) Entry() Entry {
	var zero V
	return Entry{
		Module: m.module,
		Name:   m.name,
		Kind:   "map",
		Key:    m.codec.Name,
		Hasher: m.hasher.String(),
		Value:  fmt.Sprintf("%T", zero),
		Prefix: hex.EncodeToString(m.prefix),
	}
}
