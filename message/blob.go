package message

import (
	"encoding/json"

	"github.com/alchzh/hop-client/hoperr"
)

// Blob is an unstructured message admitting any JSON value: object, array,
// string, number, boolean or null.
type Blob struct {
	Content any
}

// BlobFromText builds a Blob from raw text. Valid JSON is taken as the
// corresponding JSON value; anything else becomes a plain string, so
// unstructured text still round-trips.
func BlobFromText(text string) *Blob {
	if v, err := decodeJSONValue([]byte(text)); err == nil {
		return &Blob{Content: v}
	}
	return &Blob{Content: text}
}

// Format returns the BLOB envelope tag.
func (b *Blob) Format() Format {
	return FormatBlob
}

// Serialize encodes the blob into its tagged envelope. A content value that
// cannot be represented as JSON is a codec failure, distinct from any
// transport error.
func (b *Blob) Serialize() ([]byte, error) {
	content, err := json.Marshal(b.Content)
	if err != nil {
		return nil, hoperr.NewCodec("unable to pack a message which cannot be serialized to JSON", err)
	}
	return packEnvelope(FormatBlob, content)
}

func decodeBlob(content []byte) (*Blob, error) {
	v, err := decodeJSONValue(content)
	if err != nil {
		return nil, hoperr.NewCodec("blob content is not valid JSON", err)
	}
	return &Blob{Content: v}, nil
}
