package handlers

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"a11y-gateway/internal/domain"
	"a11y-gateway/internal/infra/logging"
	"a11y-gateway/internal/infra/storage"
	"a11y-gateway/internal/service"
)

const (
	msgNoFile     = "No file uploaded"
	msgProcessing = "Error processing PDF"
	msgInvalidPDF = "Uploaded file is not a valid PDF"

	reportFilename = "accessibility-report.json"
	taggedFilename = "autotag-tagged.pdf"
	xlsxFilename   = "autotag-report.xlsx"

	sniffBytes = 100
)

// Accessibility is the pipeline behind the upload routes.
type Accessibility interface {
	Check(ctx context.Context, up domain.Upload) (*service.CheckResult, error)
	AutoTag(ctx context.Context, up domain.Upload, opts service.AutoTagOptions) (*service.AutoTagResult, error)
	RecordOutcome(ctx context.Context, o service.Outcome)
}

// UploadHandlers serve the file upload routes.
type UploadHandlers struct {
	svc   Accessibility
	store *storage.ReportStore
}

// NewUploadHandlers creates the upload route handlers.
func NewUploadHandlers(svc Accessibility, store *storage.ReportStore) *UploadHandlers {
	return &UploadHandlers{svc: svc, store: store}
}

// HandleAccessibilityCheck runs the accessibility checker on the uploaded
// file, keeps a copy of the report and sends it back as an attachment.
func (h *UploadHandlers) HandleAccessibilityCheck(c *fiber.Ctx) error {
	up, err := readUpload(c)
	if errors.Is(err, domain.ErrNoFile) {
		return c.Status(fiber.StatusBadRequest).SendString(msgNoFile)
	}
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	outcome := service.Outcome{Kind: domain.JobAccessibilityCheck, Upload: up, Started: time.Now()}
	defer func() { h.svc.RecordOutcome(ctx, outcome) }()

	res, err := h.svc.Check(ctx, up)
	if err != nil {
		outcome.Err = err
		return failure(c, err)
	}
	defer res.Close()
	outcome.Document = res.Document

	path, err := h.store.Save(res.Report.Body, reportFilename)
	if err != nil {
		outcome.Err = domain.NewStageError(domain.StageStorage, err)
		return failure(c, outcome.Err)
	}
	outcome.ReportPath = path
	logging.Info("Accessibility report saved", "path", path, "filename", up.Name, "cached", res.Cached)

	return download(c, path, reportFilename)
}

// HandleAutoTag runs auto-tagging on the uploaded file. The tagged PDF and
// the XLSX report are both kept; the tagged PDF is sent back.
func (h *UploadHandlers) HandleAutoTag(c *fiber.Ctx) error {
	up, err := readUpload(c)
	if errors.Is(err, domain.ErrNoFile) {
		return c.Status(fiber.StatusBadRequest).SendString(msgNoFile)
	}
	if err != nil {
		return err
	}

	opts := service.AutoTagOptions{
		GenerateReport: c.FormValue("generate_report", "true") != "false",
		ShiftHeadings:  c.FormValue("shift_headings") == "true",
	}

	ctx := c.UserContext()
	outcome := service.Outcome{Kind: domain.JobAutoTag, Upload: up, Started: time.Now()}
	defer func() { h.svc.RecordOutcome(ctx, outcome) }()

	res, err := h.svc.AutoTag(ctx, up, opts)
	if err != nil {
		outcome.Err = err
		return failure(c, err)
	}
	defer res.Close()
	outcome.Document = res.Document

	taggedPath, err := h.store.Save(res.TaggedPDF.Body, taggedFilename)
	if err != nil {
		outcome.Err = domain.NewStageError(domain.StageStorage, err)
		return failure(c, outcome.Err)
	}
	outcome.ReportPath = taggedPath

	if res.Report != nil {
		reportPath, err := h.store.Save(res.Report.Body, xlsxFilename)
		if err != nil {
			outcome.Err = domain.NewStageError(domain.StageStorage, err)
			return failure(c, outcome.Err)
		}
		logging.Info("Auto-tag report saved", "path", reportPath)
	}
	logging.Info("Tagged PDF saved", "path", taggedPath, "filename", up.Name)

	return download(c, taggedPath, taggedFilename)
}

// readUpload reads the "file" form field fully into memory. A missing field
// yields domain.ErrNoFile.
func readUpload(c *fiber.Ctx) (domain.Upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrNoFile, err)
		logging.Warn("Upload rejected", "path", c.Path(), "error", err)
		return domain.Upload{}, err
	}

	f, err := fh.Open()
	if err != nil {
		return domain.Upload{}, fiber.NewError(fiber.StatusBadRequest, "Cannot open uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.Upload{}, fiber.NewError(fiber.StatusBadRequest, "Cannot read uploaded file")
	}

	up := domain.Upload{Name: fh.Filename, MIMEType: fh.Header.Get(fiber.HeaderContentType), Data: data}
	logging.Info("File received",
		"filename", up.Name,
		"size", len(up.Data),
		"mime_type", up.MIMEType,
		"head", hex.EncodeToString(up.Data[:min(sniffBytes, len(up.Data))]),
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	return up, nil
}

// failure collapses a pipeline error into the plain-text reply. The stage
// and cause only go to the log.
func failure(c *fiber.Ctx, err error) error {
	logging.Error("Upload processing failed", "stage", string(domain.StageOf(err)), "error", err)
	if errors.Is(err, domain.ErrInvalidPDF) {
		return c.Status(fiber.StatusUnsupportedMediaType).SendString(msgInvalidPDF)
	}
	return c.Status(fiber.StatusInternalServerError).SendString(msgProcessing)
}

func download(c *fiber.Ctx, path, filename string) error {
	if err := c.Download(path, filename); err != nil {
		logging.Error("Failed to send file", "path", path, "error", fmt.Errorf("download: %w", err))
	}
	return nil
}
