// Package host defines the collaborators a stage receives at initialization: the
// control plane of the host and its blob store.
//
// Implementations are shared by every stage instance of a process and are safe for
// concurrent use. Stages hold on to the Handle they were given and reuse it for every
// document instead of opening connections per call.
package host

import (
	"context"
	"errors"
)

var (
	// ErrBlobNotFound is returned by BlobStore.Get when no blob has the given id.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrControlPlaneUnavailable is returned when no control plane is reachable.
	ErrControlPlaneUnavailable = errors.New("control plane unavailable")

	// ErrBlobStoreUnavailable is returned when the handle carries no blob store.
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
)

// ControlPlane performs request style calls against the host.
type ControlPlane interface {
	Request(ctx context.Context, method, path string, payload []byte) ([]byte, error)
}

// BlobStore reads and writes opaque blobs keyed by identifier.
type BlobStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
}

// Handle is what a stage receives at initialization.
type Handle interface {
	ControlPlane
	Blobs() BlobStore
}

type handle struct {
	cp    ControlPlane
	blobs BlobStore
}

// NewHandle combines a control plane and a blob store. Either may be nil, in which case
// calls fail with ErrControlPlaneUnavailable or ErrBlobStoreUnavailable.
func NewHandle(cp ControlPlane, blobs BlobStore) Handle {
	if cp == nil {
		cp = Unavailable
	}
	if blobs == nil {
		blobs = unavailableBlobs{}
	}
	return &handle{cp: cp, blobs: blobs}
}

func (h *handle) Request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	return h.cp.Request(ctx, method, path, payload)
}

func (h *handle) Blobs() BlobStore {
	return h.blobs
}

// Unavailable is a control plane for offline runs; every request fails.
var Unavailable ControlPlane = unavailable{}

type unavailable struct{}

func (unavailable) Request(context.Context, string, string, []byte) ([]byte, error) {
	return nil, ErrControlPlaneUnavailable
}

type unavailableBlobs struct{}

func (unavailableBlobs) Get(context.Context, string) ([]byte, error) {
	return nil, ErrBlobStoreUnavailable
}

func (unavailableBlobs) Put(context.Context, string, []byte) error {
	return ErrBlobStoreUnavailable
}
