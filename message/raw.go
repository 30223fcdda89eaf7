package message

// Raw passes bytes through unchanged, with no enclosing envelope. It is the
// only format usable when piping opaque data through a byte stream; enveloped
// decoding never produces it.
type Raw struct {
	Content []byte
}

// Format returns the RAW tag.
func (r *Raw) Format() Format {
	return FormatRaw
}

// Serialize returns the bytes as-is.
func (r *Raw) Serialize() ([]byte, error) {
	return r.Content, nil
}
