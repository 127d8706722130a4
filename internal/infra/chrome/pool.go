package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"a11y-gateway/internal/config"
)

var (
	ErrPoolDisabled = errors.New("chrome pool disabled")
	ErrPoolClosed   = errors.New("chrome pool closed")
)

// Tab is a browser tab leased from a Pool.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart,omitempty"`
}

// Pool shares one Chrome process between a bounded number of tabs.
type Pool struct {
	mu          sync.Mutex
	cfg         config.Config
	sem         chan struct{}
	profileDir  string
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	started     bool
	closed      bool
	restarts    int
	lastRestart time.Time
}

// NewPool prepares a pool of cfg.PDF.ChromePoolSize tabs. The browser itself
// starts on the first Acquire.
func NewPool(cfg config.Config) (*Pool, error) {
	size := cfg.PDF.ChromePoolSize
	if size <= 0 {
		return nil, ErrPoolDisabled
	}
	p := &Pool{cfg: cfg, sem: make(chan struct{}, size)}
	if err := p.startBrowser(); err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}
	return p, nil
}

func (p *Pool) startBrowser() error {
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(p.cfg, dir)...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	p.profileDir = dir
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserStop = browserStop
	p.started = false
	return nil
}

func (p *Pool) stopBrowser() {
	if p.browserStop != nil {
		p.browserStop()
		p.browserStop = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
	}
}

// Acquire blocks until a tab is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || p.sem == nil {
		return nil, ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.sem:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.sem <- struct{}{}
		return nil, ErrPoolClosed
	}
	if !p.started && chromedp.FromContext(p.browserCtx) != nil {
		// Run with no actions launches the shared browser so tabs attach to it.
		if err := chromedp.Run(p.browserCtx); err != nil {
			p.sem <- struct{}{}
			return nil, fmt.Errorf("start chrome: %w", err)
		}
		p.started = true
	}

	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	return &Tab{Ctx: tabCtx, cancel: cancel}, nil
}

// Release closes the tab and returns its slot.
func (p *Pool) Release(tab *Tab) {
	if tab != nil && tab.cancel != nil {
		tab.cancel()
	}
	select {
	case p.sem <- struct{}{}:
	default:
	}
}

// Restart replaces the browser process and its profile directory.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.stopBrowser()
	if err := p.startBrowser(); err != nil {
		return err
	}
	p.restarts++
	p.lastRestart = time.Now()
	return nil
}

// Close stops the browser. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowser()
}

// Stats reports pool occupancy.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	capacity := cap(p.sem)
	idle := len(p.sem)
	return Stats{
		Enabled:      !p.closed && capacity > 0,
		Capacity:     capacity,
		Idle:         idle,
		InUse:        capacity - idle,
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
}

func createProfileDir(cfg config.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", fmt.Errorf("cannot create chrome profile base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return "", fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	return dir, nil
}

func allocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.PDF.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.PDF.ChromePath))
	}
	if cfg.PDF.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// IsSessionInterrupted reports errors after which the browser should be
// restarted rather than reused. Timeouts and cancellations are not session
// loss; a restart would kill tabs other requests still hold.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "browser has been closed", "no such target"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
