package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// InherentIdentifier names one kind of inherent data.
type InherentIdentifier [8]byte

var (
	TimestampInherent = InherentIdentifier{'t', 'i', 'm', 's', 't', 'a', 'p', '0'}
	BabeSlotInherent  = InherentIdentifier{'b', 'a', 'b', 'e', 's', 'l', 'o', 't'}
)

func (id InherentIdentifier) String() string {
	return string(bytes.TrimRight(id[:], "\x00"))
}

// InherentEntry is one identifier and its encoded value.
type InherentEntry struct {
	ID   InherentIdentifier `cramberry:"1"`
	Data []byte             `cramberry:"2"`
}

// InherentData is the data external collaborators supply for inherent
// construction and checking. Entries are kept sorted by identifier.
type InherentData struct {
	Entries []InherentEntry `cramberry:"1"`
}

// Put sets the raw value of id, replacing any previous value.
func (d *InherentData) Put(id InherentIdentifier, data []byte) {
	i := sort.Search(len(d.Entries), func(i int) bool {
		return bytes.Compare(d.Entries[i].ID[:], id[:]) >= 0
	})
	if i < len(d.Entries) && d.Entries[i].ID == id {
		d.Entries[i].Data = data
		return
	}
	d.Entries = append(d.Entries, InherentEntry{})
	copy(d.Entries[i+1:], d.Entries[i:])
	d.Entries[i] = InherentEntry{ID: id, Data: data}
}

// Get returns the raw value of id.
func (d *InherentData) Get(id InherentIdentifier) ([]byte, bool) {
	for _, e := range d.Entries {
		if e.ID == id {
			return e.Data, true
		}
	}
	return nil, false
}

// PutUint64 stores v little-endian under id.
func (d *InherentData) PutUint64(id InherentIdentifier, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	d.Put(id, b[:])
}

// Uint64 reads a value stored with PutUint64.
func (d *InherentData) Uint64(id InherentIdentifier) (uint64, error) {
	b, ok := d.Get(id)
	if !ok {
		return 0, fmt.Errorf("inherent data %q missing", id)
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("inherent data %q: want 8 bytes, got %d", id, len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// InherentError is one failed inherent check. A fatal error makes the
// block invalid; a non-fatal one only means this node cannot verify
// the block against its own inherent data.
type InherentError struct {
	Identifier InherentIdentifier `cramberry:"1"`
	Fatal      bool               `cramberry:"2"`
	Message    string             `cramberry:"3"`
}

func (e InherentError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("inherent %q (fatal): %s", e.Identifier, e.Message)
	}
	return fmt.Sprintf("inherent %q: %s", e.Identifier, e.Message)
}

// CheckInherentsResult collects every failed inherent check of a block.
type CheckInherentsResult struct {
	Okay       bool            `cramberry:"1"`
	FatalError bool            `cramberry:"2"`
	Errors     []InherentError `cramberry:"3"`
}

// NewCheckInherentsResult returns a passing result.
func NewCheckInherentsResult() CheckInherentsResult {
	return CheckInherentsResult{Okay: true}
}

// Add records a failed check.
func (r *CheckInherentsResult) Add(e InherentError) {
	r.Okay = false
	if e.Fatal {
		r.FatalError = true
	}
	r.Errors = append(r.Errors, e)
}

// Err combines all recorded errors, or returns nil if none.
func (r CheckInherentsResult) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}
