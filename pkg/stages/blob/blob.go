// Package blob provides stages that move field content between documents and the
// host blob store.
//
// blobfetch replaces a blob reference with the blob content. blobput does the
// reverse: it stores field content as a blob and leaves the blob id in its place.
// Both keep the store from the host handle given at Init and reuse it for every call.
package blob

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// Stage type identifiers
const (
	FetchID = "blobfetch"
	PutID   = "blobput"
)

// Missing blob policies
const (
	MissingError = "error"
	MissingSkip  = "skip"
)

// ErrNoReference is returned when the reference field is absent or empty.
var ErrNoReference = errors.New("blob reference is missing")

// FetchDescriptor declares the blobfetch configuration.
var FetchDescriptor = schema.NewDescriptor(FetchID).
	Describe("Loads blob content referenced by a field").
	String("idField", schema.Required(), schema.MinLength(1),
		schema.Description("Field holding the blob id")).
	String("target", schema.Required(), schema.MinLength(1)).
	Enum("as", []string{string(document.TypeBytes), string(document.TypeString)},
		schema.Default(string(document.TypeBytes))).
	Enum("missing", []string{MissingError, MissingSkip}, schema.Default(MissingError),
		schema.Description("What to do when the blob or its reference does not exist")).
	MustBuild()

// PutDescriptor declares the blobput configuration.
var PutDescriptor = schema.NewDescriptor(PutID).
	Describe("Stores field content as a blob and keeps its id").
	String("field", schema.Required(), schema.MinLength(1)).
	String("prefix", schema.Description("Prepended to generated blob ids")).
	String("idField", schema.Description("Field receiving the blob id; defaults to field")).
	MustBuild()

// FetchType is the registered blobfetch stage type.
var FetchType = stage.Type{
	ID:          FetchID,
	Description: "Loads blob content referenced by a field",
	Descriptor:  FetchDescriptor,
	New:         func() stage.Stage { return &Fetch{} },
}

// PutType is the registered blobput stage type.
var PutType = stage.Type{
	ID:          PutID,
	Description: "Stores field content as a blob and keeps its id",
	Descriptor:  PutDescriptor,
	New:         func() stage.Stage { return &Put{} },
}

// Fetch loads blobs into documents.
type Fetch struct {
	store   host.BlobStore
	idField string
	target  string
	as      document.TypeTag
	skip    bool
}

// Init implements stage.Stage.
func (f *Fetch) Init(cfg *schema.Config, h host.Handle) error {
	f.store = h.Blobs()
	f.idField = cfg.String("idField")
	f.target = cfg.String("target")
	f.as = document.TypeTag(cfg.String("as"))
	f.skip = cfg.String("missing") == MissingSkip
	return nil
}

// Process implements stage.Stage.
func (f *Fetch) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(f.fetch)(ctx, call, doc)
}

func (f *Fetch) fetch(ctx context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	id, ok := doc.FirstString(f.idField)
	if !ok || id == "" {
		if f.skip {
			return doc, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNoReference, f.idField)
	}

	data, err := f.store.Get(ctx, id)
	if errors.Is(err, host.ErrBlobNotFound) && f.skip {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob %s: %w", id, err)
	}

	var value interface{} = data
	if f.as == document.TypeString {
		value = string(data)
	}
	if err := doc.Set(f.target, f.as, value); err != nil {
		return nil, err
	}
	return doc, nil
}

// Put writes field content to the blob store.
type Put struct {
	store   host.BlobStore
	field   string
	prefix  string
	idField string
}

// Init implements stage.Stage.
func (p *Put) Init(cfg *schema.Config, h host.Handle) error {
	p.store = h.Blobs()
	p.field = cfg.String("field")
	p.prefix = cfg.String("prefix")
	p.idField = cfg.String("idField")
	if p.idField == "" {
		p.idField = p.field
	}
	return nil
}

// Process implements stage.Stage.
func (p *Put) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(p.put)(ctx, call, doc)
}

// BlobID is the id under which blobput stores a document field.
func BlobID(prefix, docID, field string) string {
	return prefix + docID + "/" + field
}

func (p *Put) put(ctx context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	f, ok := doc.Field(p.field)
	if !ok {
		return doc, nil
	}
	v, ok := f.First()
	if !ok {
		return doc, nil
	}

	data, ok := v.AsBytes()
	if !ok {
		data = []byte(v.String())
	}
	id := BlobID(p.prefix, doc.ID(), p.field)
	if err := p.store.Put(ctx, id, data); err != nil {
		return nil, fmt.Errorf("failed to store blob %s: %w", id, err)
	}

	if err := doc.Set(p.idField, document.TypeString, id); err != nil {
		return nil, err
	}
	return doc, nil
}
