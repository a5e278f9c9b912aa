// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// xmlNamespace is the namespace bound to the reserved "xml" prefix.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// entityDecl matches an internal general entity declaration in a DOCTYPE
// internal subset.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%"'<>]+)\s+(?:"([^"]*)"|'([^']*)')\s*>`)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// parseDocument decodes the root element and its image children. It also
// rejects empty input and anything but whitespace, comments and processing
// instructions around the root element.
func parseDocument(data []byte) (*types.Annotations, error) {
	d := newDecoder(data)

	var root xml.StartElement
	for found := false; !found; {
		tok, err := d.Token()
		if err == io.EOF {
			line, _ := d.InputPos()
			return nil, &ParseError{Line: line, Msg: "no element found"}
		}
		if err != nil {
			return nil, newParseError(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			root = t.Copy()
			found = true
		case xml.Directive:
			declareEntities(d, t)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				line, _ := d.InputPos()
				return nil, &ParseError{Line: line, Msg: "text before root element"}
			}
		}
	}

	var doc types.Annotations
	if err := d.DecodeElement(&doc, &root); err != nil {
		return nil, newParseError(d, err)
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newParseError(d, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line, _ := d.InputPos()
			return nil, &ParseError{Line: line, Msg: "junk after document element"}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				line, _ := d.InputPos()
				return nil, &ParseError{Line: line, Msg: "junk after document element"}
			}
		}
	}

	if err := checkNames(data); err != nil {
		return nil, err
	}
	return &doc, nil
}

// newDecoder returns a strict decoder for data. A leading byte order mark
// selects UTF-8 or UTF-16; other encodings are taken from the XML
// declaration.
func newDecoder(data []byte) *xml.Decoder {
	var r io.Reader = bytes.NewReader(data)
	utf16 := bytes.HasPrefix(data, bomUTF16BE) || bytes.HasPrefix(data, bomUTF16LE)
	if utf16 || bytes.HasPrefix(data, bomUTF8) {
		r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}

	d := xml.NewDecoder(r)
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		// Already transcoded from the byte order mark.
		if utf16 && strings.HasPrefix(strings.ToLower(label), "utf-16") {
			return input, nil
		}
		return charset.NewReaderLabel(label, input)
	}
	return d
}

// declareEntities makes the internal entities of a DOCTYPE known to d.
// Entity values are used as literal text.
func declareEntities(d *xml.Decoder, dir xml.Directive) {
	if !bytes.HasPrefix(dir, []byte("DOCTYPE")) {
		return
	}
	for _, m := range entityDecl.FindAllSubmatch(dir, -1) {
		if d.Entity == nil {
			d.Entity = make(map[string]string)
		}
		d.Entity[string(m[1])] = string(m[2]) + string(m[3])
	}
}

// checkNames rejects repeated attributes and unbound namespace prefixes,
// neither of which encoding/xml reports.
func checkNames(data []byte) error {
	d := newDecoder(data)
	scopes := []map[string]string{{"xml": xmlNamespace}}

	resolve := func(prefix string) (string, bool) {
		for i := len(scopes) - 1; i >= 0; i-- {
			if uri, ok := scopes[i][prefix]; ok {
				return uri, true
			}
		}
		return "", false
	}

	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return newParseError(d, err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			declareEntities(d, t)

		case xml.StartElement:
			scope := make(map[string]string)
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" {
					scope[a.Name.Local] = a.Value
				}
			}
			scopes = append(scopes, scope)

			if t.Name.Space != "" {
				if _, ok := resolve(t.Name.Space); !ok {
					line, _ := d.InputPos()
					return &ParseError{Line: line, Msg: "unbound prefix " + t.Name.Space}
				}
			}

			seen := make(map[xml.Name]bool, len(t.Attr))
			for _, a := range t.Attr {
				name := a.Name
				if name.Space != "" && name.Space != "xmlns" {
					uri, ok := resolve(name.Space)
					if !ok {
						line, _ := d.InputPos()
						return &ParseError{Line: line, Msg: "unbound prefix " + name.Space}
					}
					name.Space = uri
				}
				if seen[name] {
					line, _ := d.InputPos()
					return &ParseError{Line: line, Msg: "duplicate attribute " + a.Name.Local}
				}
				seen[name] = true
			}

		case xml.EndElement:
			if len(scopes) > 1 {
				scopes = scopes[:len(scopes)-1]
			}
		}
	}
}

func newParseError(d *xml.Decoder, err error) *ParseError {
	if se, ok := err.(*xml.SyntaxError); ok {
		return &ParseError{Line: se.Line, Msg: se.Msg, Err: err}
	}
	line, _ := d.InputPos()
	return &ParseError{Line: line, Msg: err.Error(), Err: err}
}
