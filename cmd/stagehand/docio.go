package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/document"
)

// maxLineSize bounds one encoded document.
const maxLineSize = 16 << 20

// documentReader decodes one document per input line.
type documentReader struct {
	done chan struct{}

	mu      sync.Mutex
	invalid int
	err     error
}

// readDocuments streams decoded documents from r. Lines that fail to decode are
// logged and counted; they never stop the stream.
func readDocuments(ctx context.Context, r io.Reader, logger *zap.Logger) (<-chan *document.Document, *documentReader) {
	out := make(chan *document.Document)
	dr := &documentReader{done: make(chan struct{})}

	go func() {
		defer close(dr.done)
		defer close(out)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		line := 0
		for scanner.Scan() {
			line++
			data := bytes.TrimSpace(scanner.Bytes())
			if len(data) == 0 {
				continue
			}
			doc := new(document.Document)
			if err := json.Unmarshal(data, doc); err != nil {
				logger.Warn("Skipping undecodable document", zap.Int("line", line), zap.Error(err))
				dr.mu.Lock()
				dr.invalid++
				dr.mu.Unlock()
				continue
			}
			select {
			case out <- doc:
			case <-ctx.Done():
				return
			}
		}
		dr.mu.Lock()
		dr.err = scanner.Err()
		dr.mu.Unlock()
	}()
	return out, dr
}

// wait returns the number of undecodable lines and any read error once the input
// is exhausted, or ctx's error if it ends first.
func (dr *documentReader) wait(ctx context.Context) (int, error) {
	select {
	case <-dr.done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.invalid, dr.err
}

// documentWriter encodes documents as JSON lines.
type documentWriter struct {
	w       *bufio.Writer
	written int
}

func newDocumentWriter(w io.Writer) *documentWriter {
	return &documentWriter{w: bufio.NewWriter(w)}
}

// encodeError reports outputs that could not be encoded. Nothing of the result
// is written, so it fails that document alone.
type encodeError struct {
	err error
}

func (e *encodeError) Error() string {
	return "failed to encode output: " + e.err.Error()
}

func (e *encodeError) Unwrap() error {
	return e.err
}

// write encodes every output before writing any, so a result is either written
// whole or not at all.
func (dw *documentWriter) write(docs []*document.Document) error {
	var buf bytes.Buffer
	for _, doc := range docs {
		data, err := doc.MarshalJSON()
		if err != nil {
			return &encodeError{err: err}
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if _, err := dw.w.Write(buf.Bytes()); err != nil {
		return err
	}
	dw.written += len(docs)
	return nil
}

func (dw *documentWriter) flush() error {
	return dw.w.Flush()
}
