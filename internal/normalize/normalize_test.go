package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/domain"
)

type fakeConverter struct {
	calls int
	in    []byte
	out   string
	err   error
}

func (f *fakeConverter) ConvertToHTML(_ context.Context, data []byte) (string, error) {
	f.calls++
	f.in = data
	return f.out, f.err
}

type fakeRenderer struct {
	calls int
	html  string
	paper config.PaperSize
	out   []byte
	err   error
}

func (f *fakeRenderer) RenderPDF(_ context.Context, html string, paper config.PaperSize) ([]byte, error) {
	f.calls++
	f.html = html
	f.paper = paper
	return f.out, f.err
}

func newTestNormalizer() (*Normalizer, *fakeConverter, *fakeRenderer) {
	conv := &fakeConverter{out: "<p>hi</p>"}
	rend := &fakeRenderer{out: []byte("%PDF-rendered")}
	return New(config.Default(), conv, rend), conv, rend
}

func TestNormalize_PDFPassesThrough(t *testing.T) {
	n, conv, rend := newTestNormalizer()
	up := domain.Upload{Name: "sample.pdf", MIMEType: domain.MIMEPDF, Data: []byte("%PDF-1.7 original")}

	doc, err := n.Normalize(context.Background(), up)
	require.NoError(t, err)
	assert.Equal(t, up.Data, doc.Data)
	assert.Equal(t, domain.MIMEPDF, doc.MIMEType)
	assert.False(t, doc.Converted)
	assert.Zero(t, conv.calls)
	assert.Zero(t, rend.calls)
}

func TestNormalize_WordByMIMEAndSuffix(t *testing.T) {
	for _, up := range []domain.Upload{
		{Name: "upload.bin", MIMEType: domain.MIMEDocx, Data: []byte("PK docx")},
		{Name: "sample.docx", MIMEType: "application/octet-stream", Data: []byte("PK docx")},
	} {
		n, conv, rend := newTestNormalizer()
		doc, err := n.Normalize(context.Background(), up)
		require.NoError(t, err)

		assert.Equal(t, 1, conv.calls)
		assert.Equal(t, up.Data, conv.in)
		assert.Equal(t, 1, rend.calls)
		assert.Equal(t, "<p>hi</p>", rend.html)
		assert.Equal(t, config.PaperSize{Width: 8.27, Height: 11.69}, rend.paper)
		assert.Equal(t, []byte("%PDF-rendered"), doc.Data)
		assert.NotEqual(t, up.Data, doc.Data)
		assert.True(t, doc.Converted)
		assert.Equal(t, domain.MIMEPDF, doc.MIMEType)
	}
}

func TestNormalize_ConversionFailuresAreNormalizeErrors(t *testing.T) {
	up := domain.Upload{Name: "sample.docx", Data: []byte("PK")}

	n, conv, rend := newTestNormalizer()
	conv.err = errors.New("corrupt docx")
	_, err := n.Normalize(context.Background(), up)
	assert.ErrorIs(t, err, domain.ErrNormalize)
	assert.Zero(t, rend.calls)

	n, _, rend = newTestNormalizer()
	rend.err = errors.New("chrome crashed")
	_, err = n.Normalize(context.Background(), up)
	assert.ErrorIs(t, err, domain.ErrNormalize)
	assert.ErrorContains(t, err, "chrome crashed")
}

func TestNormalize_ValidateInputRejectsNonPDF(t *testing.T) {
	n, _, _ := newTestNormalizer()
	n.ValidateInput = true

	_, err := n.Normalize(context.Background(), domain.Upload{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("just text")})
	assert.ErrorIs(t, err, domain.ErrInvalidPDF)
	assert.ErrorIs(t, err, domain.ErrNormalize)
}
