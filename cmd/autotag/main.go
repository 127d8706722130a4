// Command autotag sends one local document through the remote auto-tag
// operation and writes the tagged PDF and its XLSX report next to it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/docx"
	"a11y-gateway/internal/domain"
	"a11y-gateway/internal/infra/chrome"
	"a11y-gateway/internal/infra/logging"
	"a11y-gateway/internal/infra/pdfservices"
	"a11y-gateway/internal/infra/storage"
	"a11y-gateway/internal/normalize"
	"a11y-gateway/internal/service"
)

type options struct {
	Input         string
	TaggedOut     string
	ReportOut     string
	ShiftHeadings bool
	NoReport      bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("autotag", pflag.ContinueOnError)
	fs.StringVarP(&o.Input, "input", "i", "./Adobe_Accessibility_Auto_Tag_API_Sample.pdf", "PDF or DOCX file to tag")
	fs.StringVar(&o.TaggedOut, "tagged-out", "./autotag-tagged.pdf", "Where to write the tagged PDF")
	fs.StringVar(&o.ReportOut, "report-out", "./autotag-report.xlsx", "Where to write the tagging report")
	fs.BoolVar(&o.ShiftHeadings, "shift-headings", false, "Shift heading levels in the tagged PDF")
	fs.BoolVar(&o.NoReport, "no-report", false, "Skip the XLSX report")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func main() {
	cfg := config.Load()
	logging.InitLogger(cfg.Logger.File, cfg.Logger.MaxSizeMB, cfg.Logger.MaxBackups, cfg.Logger.MaxAgeDays, cfg.Logger.Compress, cfg.Logger.Level)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := chrome.NewRenderer(cfg)
	defer renderer.Close()
	svc := service.New(
		normalize.New(cfg, docx.NewConverter(), renderer),
		pdfservices.NewFromConfig(cfg),
		service.Options{JobTimeout: cfg.PDFServices.JobTimeout},
	)

	if err := run(ctx, svc, opts); err != nil {
		logging.Error("Exception encountered while executing operation", "stage", string(domain.StageOf(err)), "error", err)
		stop()
		renderer.Close()
		os.Exit(1)
	}
}

// run tags opts.Input and writes the tagged PDF, then the report.
func run(ctx context.Context, svc *service.Service, opts options) error {
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	res, err := svc.AutoTag(ctx, domain.Upload{Name: opts.Input, Data: data}, service.AutoTagOptions{
		GenerateReport: !opts.NoReport,
		ShiftHeadings:  opts.ShiftHeadings,
	})
	if err != nil {
		return err
	}
	defer res.Close()

	if err := storage.WriteFile(opts.TaggedOut, res.TaggedPDF.Body); err != nil {
		return domain.NewStageError(domain.StageStorage, err)
	}
	logging.Info("Tagged PDF written", "path", opts.TaggedOut)

	if res.Report != nil {
		if err := storage.WriteFile(opts.ReportOut, res.Report.Body); err != nil {
			return domain.NewStageError(domain.StageStorage, err)
		}
		logging.Info("Auto-tag report written", "path", opts.ReportOut)
	}
	return nil
}
