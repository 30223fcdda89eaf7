// Package message defines the closed set of message formats carried over the
// wire and the envelope codec that serializes them.
//
// Every enveloped message is a JSON object tagged with its format:
//
//	{"format": "circular", "content": {...}}
//
// Decoding dispatches on that tag; an unrecognized tag is a hard failure,
// never a silent fallback.
package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alchzh/hop-client/hoperr"
)

var (
	// ErrBadEnvelope is returned when a payload is not a well-formed envelope.
	ErrBadEnvelope = errors.New("message: incorrectly formatted")

	// ErrUnknownFormat is returned when an envelope carries an unrecognized
	// format tag.
	ErrUnknownFormat = errors.New("message: unrecognized format")

	// ErrBadPayload is returned when content does not parse under its
	// declared format.
	ErrBadPayload = errors.New("message: malformed payload")

	// ErrPipedNonBlob is returned when non-interactive input is supplied for
	// a format other than BLOB.
	ErrPipedNonBlob = errors.New("message: piping/redirection only allowed for BLOB formats")
)

// Format tags the message variants understood by the codec.
type Format string

const (
	FormatBlob     Format = "BLOB"
	FormatCircular Format = "CIRCULAR"
	FormatVOEvent  Format = "VOEVENT"
	FormatRaw      Format = "RAW"
)

// ParseFormat canonicalizes a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToUpper(s)); f {
	case FormatBlob, FormatCircular, FormatVOEvent, FormatRaw:
		return f, nil
	default:
		return "", hoperr.NewUsage(fmt.Sprintf("unknown message format %q", s), nil)
	}
}

// Message is one decoded alert message. The variants are closed: Blob,
// Circular, VOEvent and Raw. Adding a format means adding a variant here and
// a case to the codec dispatch below.
type Message interface {
	// Format returns the envelope tag of the variant.
	Format() Format

	// Serialize encodes the message into its wire form. For all enveloped
	// formats this is the tagged JSON envelope; Raw passes bytes through.
	Serialize() ([]byte, error)
}

type envelope struct {
	Format  string          `json:"format"`
	Content json.RawMessage `json:"content"`
}

func packEnvelope(format Format, content []byte) ([]byte, error) {
	payload, err := json.Marshal(envelope{
		Format:  strings.ToLower(string(format)),
		Content: content,
	})
	if err != nil {
		return nil, hoperr.NewCodec("cannot encode message envelope", err)
	}
	return payload, nil
}

// Decode inspects the envelope tag of an enveloped payload and dispatches to
// the matching variant decoder.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, hoperr.NewCodec("message is incorrectly formatted", errors.Join(ErrBadEnvelope, err))
	}
	if env.Format == "" || env.Content == nil {
		return nil, hoperr.NewCodec("message is incorrectly formatted", ErrBadEnvelope)
	}

	switch Format(strings.ToUpper(env.Format)) {
	case FormatBlob:
		return decodeBlob(env.Content)
	case FormatCircular:
		return decodeCircular(env.Content)
	case FormatVOEvent:
		return decodeVOEvent(env.Content)
	default:
		return nil, hoperr.NewCodec(
			fmt.Sprintf("message format %q not recognized", env.Format), ErrUnknownFormat)
	}
}

// Load parses text into a message of the requested format.
//
// For BLOB, valid JSON becomes the corresponding JSON value and anything else
// round-trips as a plain string. The structured formats require text that
// parses under their own layout.
func Load(format Format, text string) (Message, error) {
	switch format {
	case FormatBlob:
		return BlobFromText(text), nil
	case FormatCircular:
		return ParseCircular(text)
	case FormatVOEvent:
		return ParseVOEvent([]byte(text))
	case FormatRaw:
		return &Raw{Content: []byte(text)}, nil
	default:
		return nil, hoperr.NewCodec(fmt.Sprintf("message format %q not recognized", format), ErrUnknownFormat)
	}
}

// LoadFile reads a file and parses it into a message of the requested format.
func LoadFile(format Format, path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hoperr.NewCodec(fmt.Sprintf("cannot read message file %s", path), err)
	}
	return Load(format, string(data))
}

// LoadPiped parses one unit of non-interactive input. Bytes arriving without
// an enclosing envelope are ambiguous for the structured scientific formats,
// so only BLOB is accepted.
func LoadPiped(format Format, text string) (Message, error) {
	if format != FormatBlob {
		return nil, hoperr.NewUsage("piping/redirection only allowed for BLOB formats", ErrPipedNonBlob)
	}
	return BlobFromText(text), nil
}

// decodeJSONValue parses arbitrary JSON preserving number text, so that
// integer payloads survive a decode/encode cycle unchanged.
func decodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
