package document

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

// clearElementText removes the character data held directly by every
// element whose local name satisfies match. Only those byte ranges are cut;
// the prolog, namespace declarations, attributes, comments and every other
// element are kept byte for byte. It returns the rewritten document and the
// number of text runs removed.
func clearElementText(data []byte, match func(local string) bool) ([]byte, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	type span struct{ start, end int64 }
	var (
		stack []bool
		cuts  []span
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, match(t.Name.Local))
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 && stack[len(stack)-1] {
				cuts = append(cuts, span{start, dec.InputOffset()})
			}
		}
	}
	if len(stack) != 0 {
		return nil, 0, io.ErrUnexpectedEOF
	}
	if len(cuts) == 0 {
		return append([]byte(nil), data...), 0, nil
	}

	out := make([]byte, 0, len(data))
	var pos int64
	for _, c := range cuts {
		out = append(out, data[pos:c.start]...)
		pos = c.end
	}
	out = append(out, data[pos:]...)
	return out, len(cuts), nil
}

// exactMatch matches local names equal to one of fields.
func exactMatch(fields []string) func(string) bool {
	return func(local string) bool { return contains(fields, local) }
}

// substringMatch matches local names containing one of fields.
func substringMatch(fields []string) func(string) bool {
	return func(local string) bool {
		for _, f := range fields {
			if strings.Contains(local, f) {
				return true
			}
		}
		return false
	}
}

// elementTexts collects the trimmed text of every leaf element, in document
// order, keyed by local name.
func elementTexts(data []byte, fn func(local, text string)) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.EndElement:
			current = ""
		case xml.CharData:
			if v := strings.TrimSpace(string(t)); v != "" && current != "" {
				fn(current, v)
			}
		}
	}
}
