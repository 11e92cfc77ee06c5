package frame

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// MetadataVersion is the version of the Metadata document layout.
const MetadataVersion = 1

var metadataMagic = []byte("meta")

// CallMetadata describes a call.
type CallMetadata struct {
	Name   string  `cbor:"name"`
	Origin string  `cbor:"origin"`
	Args   []Field `cbor:"args"`
}

// EventMetadata describes an event variant.
type EventMetadata struct {
	Name   string  `cbor:"name"`
	Fields []Field `cbor:"fields"`
}

// ModuleMetadata describes one module.
type ModuleMetadata struct {
	Index     uint8           `cbor:"index"`
	Name      string          `cbor:"name"`
	Storage   []storage.Entry `cbor:"storage"`
	Calls     []CallMetadata  `cbor:"calls"`
	Events    []EventMetadata `cbor:"events"`
	Errors    []string        `cbor:"errors"`
	Constants []Constant      `cbor:"constants"`
}

// Metadata describes a runtime for external tooling.
type Metadata struct {
	Version    uint32           `cbor:"version"`
	SpecName   string           `cbor:"spec_name"`
	Modules    []ModuleMetadata `cbor:"modules"`
	Extensions []string         `cbor:"extensions"`
}

// Metadata returns the runtime description.
func (r *Runtime) Metadata() Metadata {
	md := Metadata{
		Version:    MetadataVersion,
		SpecName:   r.cfg.Version.SpecName,
		Extensions: r.cfg.Extensions.Identifiers(),
	}
	for i, m := range r.modules {
		mm := m.Metadata()
		mm.Index = uint8(i)
		md.Modules = append(md.Modules, mm)
	}
	return md
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// OpaqueMetadata returns the canonical CBOR encoding of Metadata
// behind a four byte magic.
func (r *Runtime) OpaqueMetadata() types.OpaqueMetadata {
	bz, err := encMode.Marshal(r.Metadata())
	if err != nil {
		panic(fmt.Sprintf("frame: encode metadata: %v", err))
	}
	return append(append([]byte(nil), metadataMagic...), bz...)
}

// DecodeMetadata parses OpaqueMetadata.
func DecodeMetadata(opaque types.OpaqueMetadata) (Metadata, error) {
	var md Metadata
	if !bytes.HasPrefix(opaque, metadataMagic) {
		return md, errors.New("frame: metadata magic missing")
	}
	if err := cbor.Unmarshal(opaque[len(metadataMagic):], &md); err != nil {
		return md, fmt.Errorf("frame: decode metadata: %w", err)
	}
	return md, nil
}
