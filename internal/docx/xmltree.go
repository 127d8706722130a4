package docx

import (
	"encoding/xml"
	"io"
)

// xnode is a minimal element tree. WordprocessingML interleaves runs,
// hyperlinks and breaks, so document order has to be kept.
type xnode struct {
	Local    string
	Attr     []xml.Attr
	Children []*xnode
	Text     string
}

func parseTree(r io.Reader) (*xnode, error) {
	dec := xml.NewDecoder(r)
	root := &xnode{}
	stack := []*xnode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xnode{Local: t.Name.Local, Attr: t.Attr}
			top.Children = append(top.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top.Text += string(t)
		}
	}
	return root, nil
}

// attr looks up an attribute by local name regardless of namespace prefix.
func (n *xnode) attr(local string) (string, bool) {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xnode) child(local string) *xnode {
	for _, c := range n.Children {
		if c.Local == local {
			return c
		}
	}
	return nil
}

func (n *xnode) find(local string) *xnode {
	if n.Local == local {
		return n
	}
	for _, c := range n.Children {
		if f := c.find(local); f != nil {
			return f
		}
	}
	return nil
}

// toggle reads an OOXML on/off property such as <w:b/> or <w:b w:val="0"/>.
func (n *xnode) toggle(local string) bool {
	c := n.child(local)
	if c == nil {
		return false
	}
	v, ok := c.attr("val")
	if !ok {
		return true
	}
	switch v {
	case "0", "false", "off", "none":
		return false
	}
	return true
}
