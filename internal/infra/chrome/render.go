package chrome

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"a11y-gateway/internal/config"
	"a11y-gateway/internal/infra/logging"
)

const (
	defaultMargin         = 0.4
	defaultAcquireTimeout = 5 * time.Second
)

// Renderer prints HTML to PDF with headless Chrome. With a pool size of zero
// every render starts its own browser.
type Renderer struct {
	cfg            config.Config
	acquireTimeout time.Duration

	poolMu  sync.Mutex
	pool    *Pool
	poolErr error
}

// NewRenderer creates a Renderer; the pool is created on first use.
func NewRenderer(cfg config.Config) *Renderer {
	return &Renderer{cfg: cfg, acquireTimeout: defaultAcquireTimeout}
}

// Pool returns the shared tab pool, or nil when pooling is disabled.
func (r *Renderer) Pool() (*Pool, error) {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()

	if r.cfg.PDF.ChromePoolSize <= 0 {
		return nil, nil
	}
	if r.pool != nil {
		return r.pool, nil
	}
	pool, err := NewPool(r.cfg)
	if err != nil {
		r.poolErr = err
		return nil, err
	}
	r.pool = pool
	return r.pool, nil
}

// Close shuts down the pool if one was started.
func (r *Renderer) Close() {
	r.poolMu.Lock()
	defer r.poolMu.Unlock()
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

// RenderPDF prints html on a page of the given size.
func (r *Renderer) RenderPDF(ctx context.Context, html string, paper config.PaperSize) ([]byte, error) {
	pool, err := r.Pool()
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(r.cfg.PDF.TimeoutSecs) * time.Second
	if pool == nil {
		return renderWithNewBrowser(ctx, html, paper, r.cfg, timeout)
	}

	acquireCtx, acquireCancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer acquireCancel()
	tab, err := pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquire chrome tab: %w", err)
	}

	buf, err := r.renderPooled(ctx, tab, html, paper, timeout)
	pool.Release(tab)
	if err != nil && ctx.Err() == nil && IsSessionInterrupted(err) {
		logging.Warn("Chrome session interrupted; restarting pool", "error", err)
		if rerr := pool.Restart(); rerr != nil {
			logging.Error("Chrome pool restart failed", "error", rerr)
		}
	}
	return buf, err
}

func (r *Renderer) renderPooled(ctx context.Context, tab *Tab, html string, paper config.PaperSize, timeout time.Duration) ([]byte, error) {
	tabCtx, cancel := context.WithTimeout(tab.Ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return renderInTab(tabCtx, html, paper, defaultMargin)
}

func renderWithNewBrowser(ctx context.Context, html string, paper config.PaperSize, cfg config.Config, timeout time.Duration) ([]byte, error) {
	tmpDir, err := createProfileDir(cfg)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, timeout)
	defer cancelTimeout()

	return renderInTab(chromeCtx, html, paper, defaultMargin)
}

// renderInTab loads html into a blank page and prints it.
func renderInTab(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error) {
	var pdfBuf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdfBuf, nil
}
