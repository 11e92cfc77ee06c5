package types

import "github.com/blockberries/rtcore/hashing"

// ApiID is blake2b-64 of a runtime API name.
type ApiID [8]byte

// ApiIDOf returns the id of the runtime API called name.
func ApiIDOf(name string) ApiID { return ApiID(hashing.Blake2b64([]byte(name))) }

// ApiVersion pairs a runtime API with the version implemented.
type ApiVersion struct {
	ID      ApiID  `cramberry:"1"`
	Version uint32 `cramberry:"2"`
}

// RuntimeVersion identifies the state transition logic. Nodes must not
// exchange blocks produced under different spec versions.
type RuntimeVersion struct {
	SpecName           string       `cramberry:"1"`
	ImplName           string       `cramberry:"2"`
	AuthoringVersion   uint32       `cramberry:"3"`
	SpecVersion        uint32       `cramberry:"4"`
	ImplVersion        uint32       `cramberry:"5"`
	Apis               []ApiVersion `cramberry:"6"`
	TransactionVersion uint32       `cramberry:"7"`
}

// APIVersion returns the implemented version of the API called name.
func (v RuntimeVersion) APIVersion(name string) (uint32, bool) {
	id := ApiIDOf(name)
	for _, a := range v.Apis {
		if a.ID == id {
			return a.Version, true
		}
	}
	return 0, false
}

// HasAPI reports whether the API called name is implemented at least
// at version min.
func (v RuntimeVersion) HasAPI(name string, min uint32) bool {
	got, ok := v.APIVersion(name)
	return ok && got >= min
}

// CanAuthorWith reports whether a node running v may author blocks
// for a chain running other.
func (v RuntimeVersion) CanAuthorWith(other RuntimeVersion) bool {
	return v.SpecName == other.SpecName && v.AuthoringVersion == other.AuthoringVersion
}

// OpaqueMetadata is the encoded runtime metadata document.
type OpaqueMetadata []byte

// KeyTypeID names the purpose of a session key.
type KeyTypeID [4]byte

var (
	KeyTypeBabe    = KeyTypeID{'b', 'a', 'b', 'e'}
	KeyTypeGrandpa = KeyTypeID{'g', 'r', 'a', 'n'}
)

func (k KeyTypeID) String() string { return string(k[:]) }

// SessionKey is one decoded session public key.
type SessionKey struct {
	PublicKey []byte    `cramberry:"1"`
	KeyType   KeyTypeID `cramberry:"2"`
}
