package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/alem-hub/caliper-fixtures/internal/domain/caliper"
	"github.com/alem-hub/caliper-fixtures/internal/domain/shared"
)

// Format names an envelope encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatCBOR:
		return f, nil
	default:
		return "", shared.NewDomainError("sensor", "ParseFormat", shared.ErrUnknownEncoder,
			fmt.Sprintf("unknown output format %q", s))
	}
}

// Encoder writes one envelope to w.
type Encoder interface {
	Encode(w io.Writer, env caliper.Envelope) error
}

// envelopeEncMode encodes envelopes deterministically: canonical key order,
// definite lengths only.
var envelopeEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	envelopeEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create envelope CBOR encoder mode: %v", err))
	}
}

// NewEncoder returns the encoder for format. Pretty indents JSON and is
// ignored by the other formats.
func NewEncoder(format Format, pretty bool) (Encoder, error) {
	switch format {
	case FormatJSON:
		return jsonEncoder{pretty: pretty}, nil
	case FormatYAML:
		return yamlEncoder{}, nil
	case FormatCBOR:
		return cborEncoder{}, nil
	default:
		return nil, shared.NewDomainError("sensor", "NewEncoder", shared.ErrUnknownEncoder,
			fmt.Sprintf("unknown output format %q", format))
	}
}

// jsonEncoder writes one JSON document per line, or indented documents when pretty.
type jsonEncoder struct {
	pretty bool
}

func (e jsonEncoder) Encode(w io.Writer, env caliper.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if e.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(env)
}

// yamlEncoder writes each envelope as a separate YAML document.
type yamlEncoder struct{}

func (yamlEncoder) Encode(w io.Writer, env caliper.Envelope) error {
	if _, err := io.WriteString(w, "---\n"); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(env); err != nil {
		return err
	}
	return enc.Close()
}

// cborEncoder writes a CBOR sequence, one data item per envelope.
type cborEncoder struct{}

func (cborEncoder) Encode(w io.Writer, env caliper.Envelope) error {
	return envelopeEncMode.NewEncoder(w).Encode(env)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENCODE HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EncodeHandler writes every envelope to an io.Writer. Writes are serialized
// so concurrent envelopes never interleave.
//
// Each envelope is encoded in full before it is written. When the writer stops
// part way, the unwritten tail is kept: handling the same envelope again writes
// only that tail, and a different envelope first completes it. The stream
// therefore never holds a truncated or duplicated document.
type EncodeHandler struct {
	mu  sync.Mutex
	w   io.Writer
	enc Encoder

	pending    []byte
	pendingEnv caliper.Envelope
}

// NewEncodeHandler creates a handler writing to w with enc.
func NewEncodeHandler(w io.Writer, enc Encoder) *EncodeHandler {
	return &EncodeHandler{w: w, enc: enc}
}

// Handle implements Handler.
func (h *EncodeHandler) Handle(ctx context.Context, env caliper.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pending != nil {
		resumed := reflect.DeepEqual(h.pendingEnv, env)
		if err := h.write(h.pending, h.pendingEnv); err != nil {
			return err
		}
		if resumed {
			return nil
		}
	}

	var buf bytes.Buffer
	if err := h.enc.Encode(&buf, env); err != nil {
		return shared.WrapError("sensor", "Encode", shared.ErrDelivery, "encode envelope", err)
	}
	return h.write(buf.Bytes(), env)
}

// write sends data and records whatever the writer did not accept.
func (h *EncodeHandler) write(data []byte, env caliper.Envelope) error {
	n, err := h.w.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		if n < len(data) {
			h.pending = data[n:]
			h.pendingEnv = env
		}
		return shared.WrapError("sensor", "Encode", shared.ErrDelivery, "write envelope", err)
	}
	h.pending = nil
	h.pendingEnv = caliper.Envelope{}
	return nil
}
