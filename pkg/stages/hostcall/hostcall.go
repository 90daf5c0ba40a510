// Package hostcall provides a stage that sends documents to the host control plane
// and stores the reply.
package hostcall

import (
	"context"
	"fmt"
	"iter"

	"github.com/tidwall/gjson"

	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/host"
	"github.com/wehubfusion/Stagehand/pkg/schema"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// ID is the stage type identifier
const ID = "hostcall"

// Descriptor declares the stage configuration.
var Descriptor = schema.NewDescriptor(ID).
	Describe("Calls the host control plane for every document").
	String("method", schema.Required(), schema.Pattern(`^[A-Za-z][A-Za-z0-9_-]*$`)).
	String("path", schema.Required(), schema.MinLength(1)).
	String("target", schema.Required(), schema.MinLength(1),
		schema.Description("Field receiving the reply")).
	String("replyPath", schema.Description("gjson path selecting part of a JSON reply")).
	Boolean("sendDocument", schema.Default(true),
		schema.Description("Send the encoded document as payload")).
	MustBuild()

// Type is the registered stage type.
var Type = stage.Type{
	ID:          ID,
	Description: "Calls the host control plane for every document",
	Descriptor:  Descriptor,
	New:         func() stage.Stage { return &Stage{} },
}

// Stage forwards documents to the control plane held by its host handle.
type Stage struct {
	cp           host.ControlPlane
	method       string
	path         string
	target       string
	replyPath    string
	sendDocument bool
}

// Init implements stage.Stage.
func (s *Stage) Init(cfg *schema.Config, h host.Handle) error {
	s.cp = h
	s.method = cfg.String("method")
	s.path = cfg.String("path")
	s.target = cfg.String("target")
	s.replyPath = cfg.String("replyPath")
	s.sendDocument = cfg.Bool("sendDocument")
	return nil
}

// Process implements stage.Stage.
func (s *Stage) Process(ctx context.Context, call *stage.Call, doc *document.Document) iter.Seq2[*document.Document, error] {
	return stage.Single(s.call)(ctx, call, doc)
}

func (s *Stage) call(ctx context.Context, _ *stage.Call, doc *document.Document) (*document.Document, error) {
	var payload []byte
	if s.sendDocument {
		var err error
		if payload, err = doc.MarshalJSON(); err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
	}

	reply, err := s.cp.Request(ctx, s.method, s.path, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.method, s.path, err)
	}

	value := string(reply)
	if s.replyPath != "" {
		if !gjson.ValidBytes(reply) {
			return nil, fmt.Errorf("reply to %s %s is not JSON", s.method, s.path)
		}
		res := gjson.GetBytes(reply, s.replyPath)
		if !res.Exists() {
			return nil, fmt.Errorf("reply to %s %s has no %s", s.method, s.path, s.replyPath)
		}
		value = res.String()
	}

	if err := doc.Set(s.target, document.TypeString, value); err != nil {
		return nil, err
	}
	return doc, nil
}
