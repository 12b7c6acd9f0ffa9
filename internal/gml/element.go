// Package gml provides a minimal streaming reader for RCN GML files.
//
// Elements are kept as small in-memory subtrees with Clark-notation tags
// ("{namespace-uri}localname"), which keeps tag and attribute matching
// namespace-agnostic via Local.
package gml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Local returns a tag name without its XML namespace.
// Example: "{uri}name" -> "name".
func Local(tag string) string {
	if i := strings.Index(tag, "}"); i >= 0 {
		return tag[i+1:]
	}
	return tag
}

// Attr is a single attribute with a Clark-notation name.
type Attr struct {
	Name  string
	Value string
}

// Element is one parsed XML subtree. It exists only for the duration of
// extracting a single record and is discarded afterwards.
type Element struct {
	Tag      string // Clark notation: "{uri}local" or bare "local"
	Attrs    []Attr
	Text     string // character data directly inside this element
	Children []*Element
}

// Local returns the element's tag without namespace.
func (e *Element) Local() string { return Local(e.Tag) }

// Attr returns the value of the attribute with the given Clark-notation
// or bare name, and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Iter visits e and all its descendants depth-first in document order,
// stopping early when fn returns false.
func (e *Element) Iter(fn func(*Element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.Children {
		if !c.Iter(fn) {
			return false
		}
	}
	return true
}

func clarkName(n xml.Name) string {
	if n.Space != "" {
		return "{" + n.Space + "}" + n.Local
	}
	return n.Local
}

// buildElement reads tokens from dec until the end of start, returning the
// completed subtree.
func buildElement(dec *xml.Decoder, start xml.StartElement) (*Element, error) {
	el := &Element{Tag: clarkName(start.Name)}
	for _, a := range start.Attr {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		el.Attrs = append(el.Attrs, Attr{Name: clarkName(a.Name), Value: a.Value})
	}
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("gml: unexpected EOF inside <%s>", start.Name.Local)
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := buildElement(dec, t)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		case xml.CharData:
			if len(el.Children) == 0 {
				text.Write(t)
			}
		case xml.EndElement:
			el.Text = text.String()
			return el, nil
		}
	}
}

// Parse reads a complete XML document from r and returns its root element.
// Intended for small documents (fixtures, single features).
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("gml: no root element")
			}
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return buildElement(dec, start)
		}
	}
}

// ParseString is Parse over an in-memory document.
func ParseString(s string) (*Element, error) {
	return Parse(strings.NewReader(s))
}

// String re-serializes the subtree, assigning ns0, ns1, ... prefixes to the
// namespaces it uses. Stored verbatim as the raw_xml audit column.
func (e *Element) String() string {
	prefixes := map[string]string{}
	collectNamespaces(e, prefixes)
	uris := make([]string, 0, len(prefixes))
	for uri := range prefixes {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	for i, uri := range uris {
		prefixes[uri] = fmt.Sprintf("ns%d", i)
	}
	var b strings.Builder
	writeElement(&b, e, prefixes, true)
	return b.String()
}

func collectNamespaces(e *Element, seen map[string]string) {
	if uri, _, ok := splitClark(e.Tag); ok {
		seen[uri] = ""
	}
	for _, a := range e.Attrs {
		if uri, _, ok := splitClark(a.Name); ok {
			seen[uri] = ""
		}
	}
	for _, c := range e.Children {
		collectNamespaces(c, seen)
	}
}

func splitClark(name string) (uri, local string, ok bool) {
	if !strings.HasPrefix(name, "{") {
		return "", name, false
	}
	i := strings.Index(name, "}")
	if i < 0 {
		return "", name, false
	}
	return name[1:i], name[i+1:], true
}

func prefixed(name string, prefixes map[string]string) string {
	uri, local, ok := splitClark(name)
	if !ok {
		return local
	}
	return prefixes[uri] + ":" + local
}

func writeElement(b *strings.Builder, e *Element, prefixes map[string]string, root bool) {
	b.WriteString("<")
	b.WriteString(prefixed(e.Tag, prefixes))
	if root {
		uris := make([]string, 0, len(prefixes))
		for uri := range prefixes {
			uris = append(uris, uri)
		}
		sort.Strings(uris)
		for _, uri := range uris {
			fmt.Fprintf(b, ` xmlns:%s="%s"`, prefixes[uri], uri)
		}
	}
	for _, a := range e.Attrs {
		fmt.Fprintf(b, ` %s="%s"`, prefixed(a.Name, prefixes), escapeAttr(a.Value))
	}
	if len(e.Children) == 0 && strings.TrimSpace(e.Text) == "" {
		b.WriteString("/>")
		return
	}
	b.WriteString(">")
	if len(e.Children) == 0 {
		b.WriteString(escapeText(e.Text))
	}
	for _, c := range e.Children {
		writeElement(b, c, prefixes, false)
	}
	b.WriteString("</")
	b.WriteString(prefixed(e.Tag, prefixes))
	b.WriteString(">")
}

var attrReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
var textReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeAttr(s string) string { return attrReplacer.Replace(s) }
func escapeText(s string) string { return textReplacer.Replace(s) }
