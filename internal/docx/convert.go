// Package docx turns a Word document into HTML suitable for printing.
//
// Conversion is best effort. Paragraphs, headings, bold, italic, underline,
// hyperlinks, line breaks, lists and tables are kept; layout, images and
// styles beyond that are dropped.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"

	maxPartSize = 64 << 20
)

const printCSS = `body{font-family:Calibri,Arial,sans-serif;font-size:11pt;line-height:1.3}
table{border-collapse:collapse}td{border:1px solid #999;padding:2pt 4pt;vertical-align:top}`

// Converter converts DOCX bytes to an HTML string.
type Converter struct{}

// NewConverter returns a Converter.
func NewConverter() *Converter { return &Converter{} }

// ConvertToHTML decodes data as a DOCX package and renders its body as HTML.
func (c *Converter) ConvertToHTML(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	docXML, err := readPart(zr, documentPart)
	if err != nil {
		return "", err
	}
	doc, err := parseTree(bytes.NewReader(docXML))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", documentPart, err)
	}

	links := map[string]string{}
	if relsXML, err := readPart(zr, relsPart); err == nil {
		if rels, err := parseTree(bytes.NewReader(relsXML)); err == nil {
			links = relationships(rels)
		}
	}

	body := doc.find("body")
	if body == nil {
		return "", fmt.Errorf("docx has no body")
	}

	w := &writer{links: links}
	page, htmlBody := w.skeleton()
	w.blocks(htmlBody, body.Children)

	var buf bytes.Buffer
	if err := html.Render(&buf, page); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxPartSize))
	}
	return nil, fmt.Errorf("docx part %s not found", name)
}

func relationships(root *xnode) map[string]string {
	out := map[string]string{}
	var walk func(n *xnode)
	walk = func(n *xnode) {
		if n.Local == "Relationship" {
			id, _ := n.attr("Id")
			target, _ := n.attr("Target")
			if id != "" {
				out[id] = target
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

type writer struct {
	links map[string]string
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func (w *writer) skeleton() (*html.Node, *html.Node) {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	head := element(atom.Head)
	meta := element(atom.Meta)
	meta.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	style := element(atom.Style)
	style.AppendChild(text(printCSS))
	head.AppendChild(meta)
	head.AppendChild(style)

	body := element(atom.Body)
	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)
	return doc, body
}

// blocks renders body-level content. Consecutive numbered paragraphs are
// grouped into one list.
func (w *writer) blocks(parent *html.Node, nodes []*xnode) {
	var list *html.Node
	for _, n := range nodes {
		switch n.Local {
		case "p":
			if isListItem(n) {
				if list == nil {
					list = element(atom.Ul)
					parent.AppendChild(list)
				}
				li := element(atom.Li)
				w.inline(li, n.Children)
				list.AppendChild(li)
				continue
			}
			list = nil
			if p := w.paragraph(n); p != nil {
				parent.AppendChild(p)
			}
		case "tbl":
			list = nil
			parent.AppendChild(w.table(n))
		case "sdt":
			if content := n.child("sdtContent"); content != nil {
				w.blocks(parent, content.Children)
			}
		}
	}
}

func isListItem(p *xnode) bool {
	ppr := p.child("pPr")
	return ppr != nil && ppr.child("numPr") != nil
}

func headingLevel(p *xnode) int {
	ppr := p.child("pPr")
	if ppr == nil {
		return 0
	}
	style := ppr.child("pStyle")
	if style == nil {
		return 0
	}
	v, _ := style.attr("val")
	v = strings.ToLower(strings.ReplaceAll(v, " ", ""))
	if v == "title" {
		return 1
	}
	if strings.HasPrefix(v, "heading") && len(v) == len("heading")+1 {
		if d := v[len(v)-1]; d >= '1' && d <= '6' {
			return int(d - '0')
		}
	}
	return 0
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func (w *writer) paragraph(p *xnode) *html.Node {
	tag := atom.P
	if lvl := headingLevel(p); lvl > 0 {
		tag = headingAtoms[lvl-1]
	}
	el := element(tag)
	w.inline(el, p.Children)
	if el.FirstChild == nil {
		return nil
	}
	return el
}

func (w *writer) inline(parent *html.Node, nodes []*xnode) {
	for _, n := range nodes {
		switch n.Local {
		case "r":
			w.run(parent, n)
		case "hyperlink":
			a := element(atom.A)
			if id, ok := n.attr("id"); ok {
				if href, ok := w.links[id]; ok {
					a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: href})
				}
			} else if anchor, ok := n.attr("anchor"); ok {
				a.Attr = append(a.Attr, html.Attribute{Key: "href", Val: "#" + anchor})
			}
			w.inline(a, n.Children)
			if a.FirstChild != nil {
				parent.AppendChild(a)
			}
		case "ins", "smartTag", "fldSimple":
			w.inline(parent, n.Children)
		case "sdt":
			if content := n.child("sdtContent"); content != nil {
				w.inline(parent, content.Children)
			}
		}
	}
}

func (w *writer) run(parent *html.Node, r *xnode) {
	target := parent
	if rpr := r.child("rPr"); rpr != nil {
		for _, f := range []struct {
			prop string
			tag  atom.Atom
		}{{"b", atom.Strong}, {"i", atom.Em}, {"u", atom.U}, {"strike", atom.S}} {
			if rpr.toggle(f.prop) {
				el := element(f.tag)
				target.AppendChild(el)
				target = el
			}
		}
	}

	for _, c := range r.Children {
		switch c.Local {
		case "t":
			if c.Text != "" {
				target.AppendChild(text(c.Text))
			}
		case "tab":
			target.AppendChild(text("\t"))
		case "br", "cr":
			target.AppendChild(element(atom.Br))
		}
	}

	// drop formatting wrappers that ended up empty
	for target != parent && target.FirstChild == nil {
		up := target.Parent
		up.RemoveChild(target)
		target = up
	}
}

func (w *writer) table(tbl *xnode) *html.Node {
	table := element(atom.Table)
	for _, tr := range tbl.Children {
		if tr.Local != "tr" {
			continue
		}
		row := element(atom.Tr)
		for _, tc := range tr.Children {
			if tc.Local != "tc" {
				continue
			}
			cell := element(atom.Td)
			if tcpr := tc.child("tcPr"); tcpr != nil {
				if span := tcpr.child("gridSpan"); span != nil {
					if v, ok := span.attr("val"); ok && v != "1" {
						cell.Attr = append(cell.Attr, html.Attribute{Key: "colspan", Val: v})
					}
				}
			}
			w.blocks(cell, tc.Children)
			row.AppendChild(cell)
		}
		table.AppendChild(row)
	}
	return table
}
