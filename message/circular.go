package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alchzh/hop-client/hoperr"
)

// HeaderField is one named header line of a circular. Order is significant
// and preserved through decode/encode cycles.
type HeaderField struct {
	Name  string
	Value string
}

// Circular is a GCN-style plain-text notice: a block of "NAME: value" header
// lines followed by a free-text body.
type Circular struct {
	Header []HeaderField
	Body   string
}

// ParseCircular parses the conventional plain-text circular layout. Header
// lines run until the first blank line; lines beginning with whitespace
// continue the previous header value.
func ParseCircular(text string) (*Circular, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var header []HeaderField
	bodyStart := len(lines)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			bodyStart = i + 1
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(header) == 0 {
				return nil, hoperr.NewCodec("circular header continues nothing", ErrBadPayload)
			}
			header[len(header)-1].Value += " " + strings.TrimSpace(line)
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, hoperr.NewCodec(
				fmt.Sprintf("unparseable circular header line %q", line), ErrBadPayload)
		}
		header = append(header, HeaderField{
			Name:  strings.ToLower(strings.TrimSpace(name)),
			Value: strings.TrimSpace(value),
		})
	}
	if len(header) == 0 {
		return nil, hoperr.NewCodec("circular carries no header block", ErrBadPayload)
	}

	return &Circular{
		Header: header,
		Body:   strings.Join(lines[bodyStart:], "\n"),
	}, nil
}

// Format returns the CIRCULAR envelope tag.
func (c *Circular) Format() Format {
	return FormatCircular
}

// Get returns the value of the first header with the given name.
func (c *Circular) Get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, f := range c.Header {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Subject returns the circular's subject header, if present.
func (c *Circular) Subject() string {
	v, _ := c.Get("subject")
	return v
}

// Text renders the circular back into its plain-text layout.
func (c *Circular) Text() string {
	var sb strings.Builder
	for _, f := range c.Header {
		sb.WriteString(strings.ToUpper(f.Name))
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(c.Body)
	return sb.String()
}

// Serialize encodes the circular into its tagged envelope. Header fields are
// written in their stored order, so a previously-decoded circular re-encodes
// byte-identically.
func (c *Circular) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"header":{`)
	for i, f := range c.Header {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, hoperr.NewCodec("cannot encode circular header", err)
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, hoperr.NewCodec("cannot encode circular header", err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteString(`},"body":`)
	body, err := json.Marshal(c.Body)
	if err != nil {
		return nil, hoperr.NewCodec("cannot encode circular body", err)
	}
	buf.Write(body)
	buf.WriteByte('}')

	return packEnvelope(FormatCircular, buf.Bytes())
}

// decodeCircular walks the content tokens directly instead of unmarshalling
// into a map, which would lose header ordering.
func decodeCircular(content []byte) (*Circular, error) {
	bad := func(err error) (*Circular, error) {
		if err == nil {
			err = ErrBadPayload
		}
		return nil, hoperr.NewCodec("circular content is malformed", err)
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	if t, err := dec.Token(); err != nil || t != json.Delim('{') {
		return bad(err)
	}

	circ := &Circular{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return bad(err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return bad(nil)
		}

		switch key {
		case "header":
			if t, err := dec.Token(); err != nil || t != json.Delim('{') {
				return bad(err)
			}
			for dec.More() {
				nameTok, err := dec.Token()
				if err != nil {
					return bad(err)
				}
				name, ok := nameTok.(string)
				if !ok {
					return bad(nil)
				}
				valueTok, err := dec.Token()
				if err != nil {
					return bad(err)
				}
				value, ok := valueTok.(string)
				if !ok {
					return bad(errors.New("message: circular header value is not a string"))
				}
				circ.Header = append(circ.Header, HeaderField{Name: name, Value: value})
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return bad(err)
			}
		case "body":
			bodyTok, err := dec.Token()
			if err != nil {
				return bad(err)
			}
			body, ok := bodyTok.(string)
			if !ok {
				return bad(errors.New("message: circular body is not a string"))
			}
			circ.Body = body
		default:
			var skip any
			if err := dec.Decode(&skip); err != nil {
				return bad(err)
			}
		}
	}

	if len(circ.Header) == 0 {
		return bad(errors.New("message: circular carries no header block"))
	}
	return circ, nil
}
