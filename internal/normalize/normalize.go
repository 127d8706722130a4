package normalize

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/domain"
	"a11y-gateway/internal/infra/logging"
)

// HTMLConverter turns a Word document into HTML.
type HTMLConverter interface {
	ConvertToHTML(ctx context.Context, data []byte) (string, error)
}

// Renderer prints HTML to PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, html string, paper config.PaperSize) ([]byte, error)
}

// Normalizer makes sure every upload leaves as PDF bytes.
type Normalizer struct {
	Converter HTMLConverter
	Renderer  Renderer
	Paper     config.PaperSize
	// ValidateInput rejects pass-through uploads that do not parse as PDF.
	ValidateInput bool
}

// New builds a Normalizer printing on the configured default paper.
func New(cfg config.Config, conv HTMLConverter, r Renderer) *Normalizer {
	return &Normalizer{
		Converter:     conv,
		Renderer:      r,
		Paper:         cfg.Paper(),
		ValidateInput: cfg.PDF.ValidateInput,
	}
}

// Normalize converts Word uploads to PDF and passes everything else through
// unchanged. Errors are returned as normalize-stage errors.
func (n *Normalizer) Normalize(ctx context.Context, up domain.Upload) (*domain.Document, error) {
	if !up.IsWordDocument() {
		if n.ValidateInput {
			if err := validatePDF(up.Data); err != nil {
				return nil, domain.NewStageError(domain.StageNormalize, fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err))
			}
		}
		return &domain.Document{Name: up.Name, MIMEType: domain.MIMEPDF, Data: up.Data}, nil
	}

	html, err := n.Converter.ConvertToHTML(ctx, up.Data)
	if err != nil {
		return nil, domain.NewStageError(domain.StageNormalize, fmt.Errorf("docx to html: %w", err))
	}
	pdf, err := n.Renderer.RenderPDF(ctx, html, n.Paper)
	if err != nil {
		return nil, domain.NewStageError(domain.StageNormalize, fmt.Errorf("html to pdf: %w", err))
	}
	logging.Info("Converted Word document to PDF", "filename", up.Name, "html_bytes", len(html), "pdf_bytes", len(pdf))

	return &domain.Document{Name: up.Name, MIMEType: domain.MIMEPDF, Data: pdf, Converted: true}, nil
}

func validatePDF(data []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}
