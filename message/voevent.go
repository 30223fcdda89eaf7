package message

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alchzh/hop-client/hoperr"
)

// VOEvent is a structured astronomical notice following the VOEvent 2.0
// schema family (http://www.ivoa.net/Documents/VOEvent/20110711/).
// The standard sections are kept as generic trees: element attributes are
// stored under "@name" keys, mixed text under "#text", and repeated child
// elements collapse into arrays.
type VOEvent struct {
	IVORN   string `json:"ivorn"`
	Role    string `json:"role"`
	Version string `json:"version"`

	Who         map[string]any `json:"Who,omitempty"`
	What        map[string]any `json:"What,omitempty"`
	WhereWhen   map[string]any `json:"WhereWhen,omitempty"`
	How         map[string]any `json:"How,omitempty"`
	Why         map[string]any `json:"Why,omitempty"`
	Citations   map[string]any `json:"Citations,omitempty"`
	Description map[string]any `json:"Description,omitempty"`
	Reference   map[string]any `json:"Reference,omitempty"`
}

// Format returns the VOEVENT envelope tag.
func (v *VOEvent) Format() Format {
	return FormatVOEvent
}

// Serialize encodes the VOEvent into its tagged envelope.
func (v *VOEvent) Serialize() ([]byte, error) {
	content, err := json.Marshal(v)
	if err != nil {
		return nil, hoperr.NewCodec("cannot encode VOEvent content", err)
	}
	return packEnvelope(FormatVOEvent, content)
}

func decodeVOEvent(content []byte) (*VOEvent, error) {
	var v VOEvent
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, hoperr.NewCodec("VOEvent content is malformed", errors.Join(ErrBadPayload, err))
	}
	if v.IVORN == "" {
		return nil, hoperr.NewCodec("VOEvent is missing its ivorn", ErrBadPayload)
	}
	return &v, nil
}

// ParseVOEvent parses a VOEvent XML document. Malformed XML is a decode
// failure, not a crash.
func ParseVOEvent(data []byte) (*VOEvent, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, hoperr.NewCodec("VOEvent XML is malformed", errors.Join(ErrBadPayload, err))
		}
		if start, ok := tok.(xml.StartElement); ok {
			root = start
			break
		}
	}
	if root.Name.Local != "VOEvent" {
		return nil, hoperr.NewCodec(
			fmt.Sprintf("expected a VOEvent document, found <%s>", root.Name.Local), ErrBadPayload)
	}

	v := &VOEvent{Role: "observation", Version: "2.0"}
	for _, attr := range root.Attr {
		switch attr.Name.Local {
		case "ivorn":
			v.IVORN = attr.Value
		case "role":
			v.Role = attr.Value
		case "version":
			v.Version = attr.Value
		}
	}
	if v.IVORN == "" {
		return nil, hoperr.NewCodec("VOEvent is missing its ivorn", ErrBadPayload)
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, hoperr.NewCodec("VOEvent XML is malformed", errors.Join(ErrBadPayload, err))
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		section, err := xmlElementToMap(dec, start)
		if err != nil {
			return nil, hoperr.NewCodec("VOEvent XML is malformed", errors.Join(ErrBadPayload, err))
		}
		switch start.Name.Local {
		case "Who":
			v.Who = section
		case "What":
			v.What = section
		case "WhereWhen":
			v.WhereWhen = section
		case "How":
			v.How = section
		case "Why":
			v.Why = section
		case "Citations":
			v.Citations = section
		case "Description":
			v.Description = section
		case "Reference":
			v.Reference = section
		}
	}

	return v, nil
}

// XML renders the VOEvent back into an XML document. Section keys are written
// in sorted order for deterministic output.
func (v *VOEvent) XML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "voe:VOEvent"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:voe"}, Value: "http://www.ivoa.net/xml/VOEvent/v2.0"},
			{Name: xml.Name{Local: "ivorn"}, Value: v.IVORN},
			{Name: xml.Name{Local: "role"}, Value: v.Role},
			{Name: xml.Name{Local: "version"}, Value: v.Version},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, hoperr.NewCodec("cannot encode VOEvent XML", err)
	}

	sections := []struct {
		name string
		data map[string]any
	}{
		{"Who", v.Who}, {"What", v.What}, {"WhereWhen", v.WhereWhen},
		{"How", v.How}, {"Why", v.Why}, {"Citations", v.Citations},
		{"Description", v.Description}, {"Reference", v.Reference},
	}
	for _, s := range sections {
		if s.data == nil {
			continue
		}
		if err := encodeXMLValue(enc, s.name, s.data); err != nil {
			return nil, hoperr.NewCodec("cannot encode VOEvent XML", err)
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, hoperr.NewCodec("cannot encode VOEvent XML", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, hoperr.NewCodec("cannot encode VOEvent XML", err)
	}
	return buf.Bytes(), nil
}

// xmlElementToMap consumes the element opened by start and returns its
// generic tree form.
func xmlElementToMap(dec *xml.Decoder, start xml.StartElement) (map[string]any, error) {
	v, err := xmlElementToValue(dec, start)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	// text-only section
	return map[string]any{"#text": v}, nil
}

func xmlElementToValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	node := map[string]any{}
	for _, attr := range start.Attr {
		node["@"+attr.Name.Local] = attr.Value
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := xmlElementToValue(dec, t)
			if err != nil {
				return nil, err
			}
			appendXMLChild(node, t.Name.Local, child)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			trimmed := strings.TrimSpace(text.String())
			if len(node) == 0 {
				return trimmed, nil
			}
			if trimmed != "" {
				node["#text"] = trimmed
			}
			return node, nil
		}
	}
}

func appendXMLChild(node map[string]any, name string, child any) {
	existing, ok := node[name]
	if !ok {
		node[name] = child
		return
	}
	if list, ok := existing.([]any); ok {
		node[name] = append(list, child)
		return
	}
	node[name] = []any{existing, child}
}

func encodeXMLValue(enc *xml.Encoder, name string, value any) error {
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			if err := encodeXMLValue(enc, name, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		start := xml.StartElement{Name: xml.Name{Local: name}}
		var children []string
		text := ""
		for key := range v {
			switch {
			case strings.HasPrefix(key, "@"):
				start.Attr = append(start.Attr, xml.Attr{
					Name:  xml.Name{Local: strings.TrimPrefix(key, "@")},
					Value: fmt.Sprint(v[key]),
				})
			case key == "#text":
				text = fmt.Sprint(v[key])
			default:
				children = append(children, key)
			}
		}
		sort.Slice(start.Attr, func(i, j int) bool {
			return start.Attr[i].Name.Local < start.Attr[j].Name.Local
		})
		sort.Strings(children)

		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if text != "" {
			if err := enc.EncodeToken(xml.CharData(text)); err != nil {
				return err
			}
		}
		for _, key := range children {
			if err := encodeXMLValue(enc, key, v[key]); err != nil {
				return err
			}
		}
		return enc.EncodeToken(xml.EndElement{Name: start.Name})
	default:
		start := xml.StartElement{Name: xml.Name{Local: name}}
		if err := enc.EncodeToken(start); err != nil {
			return err
		}
		if err := enc.EncodeToken(xml.CharData(fmt.Sprint(v))); err != nil {
			return err
		}
		return enc.EncodeToken(xml.EndElement{Name: start.Name})
	}
}
