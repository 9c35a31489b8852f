// Package pubmedxml parses E-utilities efetch XML into a lightweight
// element tree with path lookups that mirror the way PubMed records are
// addressed (".//Journal/Title", ".//ELocationID[@EIdType='doi']").
package pubmedxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrEmptyDocument is returned when the payload has no root element.
var ErrEmptyDocument = errors.New("XML document has no root element")

// Node is one XML element. Character data and child elements are kept in
// document order so that InnerText can flatten inline markup.
type Node struct {
	Name     string
	Attr     []xml.Attr
	Children []*Node
	Parent   *Node

	content []any // string or *Node
}

// Parse reads a complete XML document and returns its root element.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	var root, cur *Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing PubMed XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local, Attr: t.Copy().Attr, Parent: cur}
			if cur == nil {
				if root != nil {
					return nil, fmt.Errorf("parsing PubMed XML: multiple root elements")
				}
				root = n
			} else {
				cur.Children = append(cur.Children, n)
				cur.content = append(cur.content, n)
			}
			cur = n
		case xml.EndElement:
			if cur != nil {
				cur = cur.Parent
			}
		case xml.CharData:
			if cur != nil {
				cur.content = append(cur.content, string(t))
			}
		}
	}

	if root == nil {
		return nil, ErrEmptyDocument
	}
	return root, nil
}

// Attribute returns the value of the named attribute, or "".
func (n *Node) Attribute(name string) string {
	for _, a := range n.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Text returns the element's own character data, excluding children.
func (n *Node) Text() string {
	var b strings.Builder
	for _, c := range n.content {
		if s, ok := c.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// InnerText returns all character data beneath the element in document
// order, with child tags removed.
func (n *Node) InnerText() string {
	var b strings.Builder
	n.writeInner(&b)
	return b.String()
}

func (n *Node) writeInner(b *strings.Builder) {
	for _, c := range n.content {
		switch v := c.(type) {
		case string:
			b.WriteString(v)
		case *Node:
			v.writeInner(b)
		}
	}
}

// Walk visits n and its descendants in document order. Returning false
// from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// FindAll returns every descendant named child whose parent is named
// parent. An empty parent matches any element.
func (n *Node) FindAll(parent, child string) []*Node {
	var out []*Node
	n.Walk(func(e *Node) bool {
		if e != n && e.Name == child && (parent == "" || (e.Parent != nil && e.Parent.Name == parent)) {
			out = append(out, e)
		}
		return true
	})
	return out
}

// Find returns the first match of FindAll, or nil.
func (n *Node) Find(parent, child string) *Node {
	var found *Node
	n.Walk(func(e *Node) bool {
		if e != n && e.Name == child && (parent == "" || (e.Parent != nil && e.Parent.Name == parent)) {
			found = e
			return false
		}
		return true
	})
	return found
}

// FindWithAttr returns the first descendant named child carrying the
// attribute attr=value, or nil.
func (n *Node) FindWithAttr(child, attr, value string) *Node {
	var found *Node
	n.Walk(func(e *Node) bool {
		if e != n && e.Name == child && e.Attribute(attr) == value {
			found = e
			return false
		}
		return true
	})
	return found
}

// ChildText returns the own text of the first direct child named name.
func (n *Node) ChildText(name string) string {
	for _, c := range n.Children {
		if c.Name == name {
			return c.Text()
		}
	}
	return ""
}

var strict = bluemonday.StrictPolicy()

// inlineTag matches an escaped inline formatting tag such as "&lt;sup&gt;"
// or "&lt;/i&gt;" after html.EscapeString.
var inlineTag = regexp.MustCompile(`(?i)&lt;(/?)(i|b|u|em|strong|sup|sub|inf)\s*(/?)&gt;`)

// PlainText flattens an element to display text. Child elements are
// flattened, and inline formatting tags that arrive escaped (e.g.
// "&lt;i&gt;") are stripped as well. Any other "<" or ">" is text, such as
// the "<or=" notation. Whitespace is collapsed. A nil node yields "".
func PlainText(n *Node) string {
	if n == nil {
		return ""
	}
	s := html.EscapeString(n.InnerText())
	s = inlineTag.ReplaceAllString(s, "<$1$2$3>")
	s = html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
