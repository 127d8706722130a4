package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"a11y-gateway/internal/domain"
	"a11y-gateway/internal/infra/cache"
	"a11y-gateway/internal/infra/logging"
	"a11y-gateway/internal/infra/metrics"
	"a11y-gateway/internal/infra/pdfservices"
	"a11y-gateway/internal/infra/postgres"
)

// Normalizer turns an upload into PDF bytes.
type Normalizer interface {
	Normalize(ctx context.Context, up domain.Upload) (*domain.Document, error)
}

// JobClient is the remote accessibility service.
type JobClient interface {
	Upload(ctx context.Context, r io.Reader, mediaType string) (pdfservices.Asset, error)
	Submit(ctx context.Context, job pdfservices.Job) (pdfservices.PollingURL, error)
	Wait(ctx context.Context, polling pdfservices.PollingURL) (*pdfservices.JobResult, error)
	Content(ctx context.Context, asset pdfservices.Asset) (io.ReadCloser, error)
}

// ReportCache is an optional store of finished checker reports.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, report []byte)
}

// Recorder is an optional sink for job records.
type Recorder interface {
	Record(ctx context.Context, rec postgres.JobRecord) error
}

// Options wires optional collaborators.
type Options struct {
	Cache      ReportCache
	Ledger     Recorder
	Metrics    *metrics.Metrics
	JobTimeout time.Duration
}

// Service runs uploads through normalization and a remote job.
type Service struct {
	normalizer Normalizer
	jobs       JobClient
	opts       Options
}

// New creates a Service.
func New(n Normalizer, jobs JobClient, opts Options) *Service {
	return &Service{normalizer: n, jobs: jobs, opts: opts}
}

// CheckResult is a finished accessibility check. Report must be closed.
type CheckResult struct {
	Document *domain.Document
	Report   *domain.Asset
	Cached   bool
}

// Close releases the report stream.
func (r *CheckResult) Close() error {
	if r == nil {
		return nil
	}
	return r.Report.Close()
}

// AutoTagResult is a finished auto-tag job. Report is nil when no report
// was requested. Both streams must be closed.
type AutoTagResult struct {
	Document  *domain.Document
	TaggedPDF *domain.Asset
	Report    *domain.Asset
}

// Close releases both streams.
func (r *AutoTagResult) Close() error {
	if r == nil {
		return nil
	}
	err := r.TaggedPDF.Close()
	if rerr := r.Report.Close(); err == nil {
		err = rerr
	}
	return err
}

// AutoTagOptions mirror the remote auto-tag parameters.
type AutoTagOptions struct {
	GenerateReport bool
	ShiftHeadings  bool
}

// Check normalizes up, runs the accessibility checker and returns the JSON
// report stream.
func (s *Service) Check(ctx context.Context, up domain.Upload) (*CheckResult, error) {
	doc, err := s.normalize(ctx, domain.JobAccessibilityCheck, up)
	if err != nil {
		return nil, err
	}

	var key string
	if s.opts.Cache != nil {
		key = cache.Key(string(domain.JobAccessibilityCheck), doc.Data)
		if b, ok, _ := s.opts.Cache.Get(ctx, key); ok {
			if s.opts.Metrics != nil {
				s.opts.Metrics.CacheHits.Inc()
			}
			return &CheckResult{Document: doc, Report: reportAsset(io.NopCloser(bytes.NewReader(b))), Cached: true}, nil
		}
	}

	jobCtx, release := s.jobContext(ctx)
	res, err := s.run(jobCtx, domain.JobAccessibilityCheck, doc, func(in pdfservices.Asset) pdfservices.Job {
		return pdfservices.AccessibilityCheckerJob{Input: in}
	})
	if err != nil {
		release()
		return nil, err
	}
	if res.Report == nil {
		release()
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("job result has no report"))
	}

	body, err := s.jobs.Content(jobCtx, *res.Report)
	if err != nil {
		release()
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("fetch report: %w", err))
	}

	if s.opts.Cache != nil {
		b, err := io.ReadAll(body)
		body.Close()
		release()
		if err != nil {
			return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("read report: %w", err))
		}
		s.opts.Cache.Set(ctx, key, b)
		return &CheckResult{Document: doc, Report: reportAsset(io.NopCloser(bytes.NewReader(b)))}, nil
	}

	closers := newCloseGroup(1, release)
	return &CheckResult{Document: doc, Report: reportAsset(closers.wrap(body))}, nil
}

// AutoTag normalizes up, runs auto-tagging and returns the tagged PDF and,
// when requested, the XLSX report.
func (s *Service) AutoTag(ctx context.Context, up domain.Upload, opts AutoTagOptions) (*AutoTagResult, error) {
	doc, err := s.normalize(ctx, domain.JobAutoTag, up)
	if err != nil {
		return nil, err
	}

	jobCtx, release := s.jobContext(ctx)
	res, err := s.run(jobCtx, domain.JobAutoTag, doc, func(in pdfservices.Asset) pdfservices.Job {
		return pdfservices.AutoTagJob{Input: in, GenerateReport: opts.GenerateReport, ShiftHeadings: opts.ShiftHeadings}
	})
	if err != nil {
		release()
		return nil, err
	}
	if res.TaggedPDF == nil {
		release()
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("job result has no tagged pdf"))
	}

	n := 1
	if opts.GenerateReport && res.Report != nil {
		n = 2
	}
	closers := newCloseGroup(n, release)

	tagged, err := s.jobs.Content(jobCtx, *res.TaggedPDF)
	if err != nil {
		release()
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("fetch tagged pdf: %w", err))
	}
	out := &AutoTagResult{
		Document:  doc,
		TaggedPDF: &domain.Asset{Name: "autotag-tagged.pdf", MIMEType: domain.MIMEPDF, Body: closers.wrap(tagged)},
	}

	if n == 2 {
		report, err := s.jobs.Content(jobCtx, *res.Report)
		if err != nil {
			tagged.Close()
			release()
			return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("fetch report: %w", err))
		}
		out.Report = &domain.Asset{Name: "autotag-report.xlsx", MIMEType: domain.MIMEXLSX, Body: closers.wrap(report)}
	}
	return out, nil
}

// Outcome describes a finished request for the ledger and metrics.
type Outcome struct {
	Kind       domain.JobKind
	Upload     domain.Upload
	Document   *domain.Document
	ReportPath string
	Started    time.Time
	Err        error
}

// RecordOutcome counts failures and appends a ledger row. It never fails
// the request.
func (s *Service) RecordOutcome(ctx context.Context, o Outcome) {
	status := postgres.StatusSucceeded
	stage := ""
	if o.Err != nil {
		status = postgres.StatusFailed
		stage = string(domain.StageOf(o.Err))
		if s.opts.Metrics != nil {
			s.opts.Metrics.StageFailures.WithLabelValues(string(o.Kind), stage).Inc()
		}
	}
	if s.opts.Ledger == nil {
		return
	}
	rec := postgres.JobRecord{
		Kind:       string(o.Kind),
		Filename:   o.Upload.Name,
		Converted:  o.Document != nil && o.Document.Converted,
		Status:     status,
		ErrorStage: stage,
		ReportPath: o.ReportPath,
		Duration:   time.Since(o.Started),
	}
	if err := s.opts.Ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		logging.Warn("Job ledger write failed", "error", err)
	}
}

func (s *Service) normalize(ctx context.Context, kind domain.JobKind, up domain.Upload) (*domain.Document, error) {
	doc, err := s.normalizer.Normalize(ctx, up)
	if err != nil {
		return nil, err
	}
	if s.opts.Metrics != nil {
		path := "passthrough"
		if doc.Converted {
			path = "converted"
		}
		s.opts.Metrics.Uploads.WithLabelValues(string(kind), path).Inc()
	}
	return doc, nil
}

func (s *Service) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.JobTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.JobTimeout)
	}
	return context.WithCancel(ctx)
}

// run uploads doc, submits the job built by mk and waits for it.
func (s *Service) run(ctx context.Context, kind domain.JobKind, doc *domain.Document, mk func(pdfservices.Asset) pdfservices.Job) (*pdfservices.JobResult, error) {
	start := time.Now()
	res, err := s.runSteps(ctx, doc, mk)

	outcome := "done"
	if err != nil {
		outcome = "error"
		logging.Error("Remote job failed", "kind", string(kind), "retryable", pdfservices.IsRetryable(err), "error", err)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.RemoteJobs.WithLabelValues(string(kind), outcome).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *Service) runSteps(ctx context.Context, doc *domain.Document, mk func(pdfservices.Asset) pdfservices.Job) (*pdfservices.JobResult, error) {
	in, err := s.jobs.Upload(ctx, bytes.NewReader(doc.Data), domain.MIMEPDF)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("upload asset: %w", err))
	}
	polling, err := s.jobs.Submit(ctx, mk(in))
	if err != nil {
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("submit job: %w", err))
	}
	res, err := s.jobs.Wait(ctx, polling)
	if err != nil {
		return nil, domain.NewStageError(domain.StageRemote, fmt.Errorf("wait for job: %w", err))
	}
	return res, nil
}

func reportAsset(body io.ReadCloser) *domain.Asset {
	return &domain.Asset{Name: "accessibility-report.json", MIMEType: domain.MIMEJSON, Body: body}
}

// closeGroup runs release once every wrapped stream has been closed.
type closeGroup struct {
	remaining atomic.Int32
	release   context.CancelFunc
}

func newCloseGroup(n int, release context.CancelFunc) *closeGroup {
	g := &closeGroup{release: release}
	g.remaining.Store(int32(n))
	return g
}

func (g *closeGroup) wrap(rc io.ReadCloser) io.ReadCloser {
	return &groupedCloser{ReadCloser: rc, group: g}
}

type groupedCloser struct {
	io.ReadCloser
	group  *closeGroup
	closed atomic.Bool
}

func (c *groupedCloser) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.ReadCloser.Close()
	if c.group.remaining.Add(-1) == 0 {
		c.group.release()
	}
	return err
}
