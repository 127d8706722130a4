package main

import (
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"a11y-gateway/internal/config"
)

func TestStartServer_GracefulShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":0"

	idleConnsClosed := make(chan struct{})
	go func() { _ = startServer(app, cfg, idleConnsClosed) }()

	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case <-idleConnsClosed:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for graceful shutdown")
	}
}

func TestMain_UsesConfigAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	err := os.WriteFile(cfgPath, []byte(`
server:
  host: "127.0.0.1"
  port: ":0"
logger:
  file: "`+filepath.Join(dir, "gateway.log")+`"
  level: "info"
  max_size_mb: 1
  max_backups: 1
  max_age_days: 1
pdf:
  timeout_secs: 1
  chrome_pool_size: 0
pdf_services:
  base_url: "http://127.0.0.1:1"
reports:
  dir: "`+filepath.Join(dir, "reports")+`"
cache:
  report_cache_enabled: false
  redis_host: ""
`), 0o644)
	if err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("CHROME_BIN", "/bin/true")

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("signal main: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for main to exit")
	}
}

func TestStartServer_ReturnsWhenListenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Server.Host = ""
	cfg.Server.Port = ln.Addr().String()

	idleConnsClosed := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- startServer(fiber.New(), cfg, idleConnsClosed) }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("expected listen error for a port in use")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("startServer kept waiting after listen failure")
	}
	select {
	case <-idleConnsClosed:
	default:
		t.Fatalf("expected idleConnsClosed to be closed")
	}
}
