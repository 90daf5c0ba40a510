package document

import "github.com/google/uuid"

// Factory creates documents independent of any input document. Stages receive one
// through their per-call context to build fan-out or derived documents.
type Factory interface {
	// New returns an empty document with a freshly assigned identity.
	New() *Document
	// NewWithID returns an empty document with the given identity.
	NewWithID(id string) (*Document, error)
}

// UUIDFactory assigns time-ordered UUIDs as identities.
type UUIDFactory struct {
	// Prefix is prepended to generated identities when set.
	Prefix string
}

// NewUUIDFactory creates a factory with an optional identity prefix.
func NewUUIDFactory(prefix string) *UUIDFactory {
	return &UUIDFactory{Prefix: prefix}
}

// New returns an empty document with a generated identity.
func (f *UUIDFactory) New() *Document {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return MustNew(f.Prefix + id.String())
}

// NewWithID returns an empty document with the given identity.
func (f *UUIDFactory) NewWithID(id string) (*Document, error) {
	return New(id)
}

var _ Factory = (*UUIDFactory)(nil)
