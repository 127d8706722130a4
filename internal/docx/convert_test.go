package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

func buildDocx(t *testing.T, body string, rels string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(documentPart)
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><w:document ` + wNS + `><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	if rels != "" {
		f, err := zw.Create(relsPart)
		require.NoError(t, err)
		_, err = f.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels + `</Relationships>`))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func convert(t *testing.T, data []byte) string {
	t.Helper()
	out, err := NewConverter().ConvertToHTML(context.Background(), data)
	require.NoError(t, err)
	return out
}

func TestConvertToHTML_HeadingsAndFormatting(t *testing.T) {
	data := buildDocx(t, `
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Report</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Heading3"/></w:pPr><w:r><w:t>Scope</w:t></w:r></w:p>
<w:p>
  <w:r><w:t xml:space="preserve">Plain </w:t></w:r>
  <w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r>
  <w:r><w:rPr><w:b w:val="0"/><w:i/></w:rPr><w:t>italic</w:t></w:r>
  <w:r><w:br/><w:t>a &lt;tag&gt;</w:t></w:r>
</w:p>
<w:p></w:p>`, "")

	out := convert(t, data)
	assert.Contains(t, out, "<h1>Report</h1>")
	assert.Contains(t, out, "<h3>Scope</h3>")
	assert.Contains(t, out, "<p>Plain <strong>bold</strong><em>italic</em><br/>a &lt;tag&gt;</p>")
	assert.NotContains(t, out, "<p></p>")
	assert.Contains(t, out, `<meta charset="utf-8"/>`)
}

func TestConvertToHTML_HyperlinksListsAndTables(t *testing.T) {
	data := buildDocx(t, `
<w:p><w:hyperlink r:id="rId5"><w:r><w:t>site</w:t></w:r></w:hyperlink></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>one</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="1"/></w:numPr></w:pPr><w:r><w:t>two</w:t></w:r></w:p>
<w:tbl><w:tr>
  <w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>cell</w:t></w:r></w:p></w:tc>
</w:tr></w:tbl>`,
		`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com/" TargetMode="External"/>`)

	out := convert(t, data)
	assert.Contains(t, out, `<a href="https://example.com/">site</a>`)
	assert.Contains(t, out, "<ul><li>one</li><li>two</li></ul>")
	assert.Contains(t, out, `<table><tr><td colspan="2"><p>cell</p></td></tr></table>`)
}

func TestConvertToHTML_Errors(t *testing.T) {
	c := NewConverter()

	_, err := c.ConvertToHTML(context.Background(), []byte("%PDF-1.7 not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, _ = zw.Create("other.xml")
	require.NoError(t, zw.Close())
	_, err = c.ConvertToHTML(context.Background(), buf.Bytes())
	assert.ErrorContains(t, err, documentPart)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ConvertToHTML(ctx, buildDocx(t, "", ""))
	assert.ErrorIs(t, err, context.Canceled)
}
