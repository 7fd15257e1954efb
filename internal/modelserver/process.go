package modelserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"iorganise/internal/manager"
)

const (
	defaultReadyTimeout = 2 * time.Minute
	stopGrace           = 2 * time.Second
	stderrTailBytes     = 4096
)

// ProcessConfig describes a model server to spawn. Host and port flags are
// appended by StartProcess.
type ProcessConfig struct {
	Name         string
	Bin          string
	Args         []string
	Host         string
	PortStart    int
	PortEnd      int
	HealthPath   string
	ReadyTimeout time.Duration
	Logger       *zerolog.Logger
}

// Process is a running model server.
type Process struct {
	name    string
	cmd     *exec.Cmd
	baseURL string
	stderr  *tailBuffer
	done    chan struct{}
	waitErr error
	log     zerolog.Logger

	stopOnce sync.Once
}

// StartProcess spawns the server and waits until its health path answers 2xx,
// the process exits, ReadyTimeout passes or ctx is done. On failure the
// process is killed.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*Process, error) {
	if strings.TrimSpace(cfg.Bin) == "" {
		return nil, manager.ErrDependencyUnavailable(cfg.Name + ": server binary not configured")
	}
	bin, err := exec.LookPath(cfg.Bin)
	if err != nil {
		return nil, manager.ErrDependencyUnavailable(fmt.Sprintf("%s: %v", cfg.Name, err))
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	var port int
	if cfg.PortStart > 0 && cfg.PortEnd >= cfg.PortStart {
		port, err = pickPortInRange(host, cfg.PortStart, cfg.PortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health"
	}
	readyTimeout := cfg.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	args := append(append([]string{}, cfg.Args...), "--host", host, "--port", strconv.Itoa(port))
	cmd := exec.Command(bin, args...)
	tail := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Name, err)
	}
	p := &Process{
		name:    cfg.Name,
		cmd:     cmd,
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		stderr:  tail,
		done:    make(chan struct{}),
		log:     log,
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	log.Info().Str("event", "spawn_start").Str("server", cfg.Name).Int("pid", cmd.Process.Pid).Int("port", port).Msg("modelserver")

	if err := p.waitReady(ctx, healthPath, readyTimeout); err != nil {
		_ = p.Stop()
		log.Error().Str("event", "spawn_error").Str("server", cfg.Name).Err(err).Msg("modelserver")
		return nil, err
	}
	log.Info().Str("event", "spawn_ready").Str("server", cfg.Name).Str("url", p.baseURL).Msg("modelserver")
	return p, nil
}

func (p *Process) waitReady(ctx context.Context, healthPath string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	client := &http.Client{Timeout: time.Second}
	for {
		select {
		case <-p.done:
			if p.waitErr != nil {
				return fmt.Errorf("%s exited early: %v; stderr tail: %s", p.name, p.waitErr, p.stderr.String())
			}
			return fmt.Errorf("%s exited before ready: %s", p.name, p.baseURL)
		case <-ctx.Done():
			return fmt.Errorf("%s not ready: %w", p.name, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%s not ready in time: %s", p.name, p.baseURL)
		case <-ticker.C:
		}
		resp, err := client.Get(p.baseURL + healthPath)
		if err != nil {
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
	}
}

// BaseURL is the server address, e.g. http://127.0.0.1:41234.
func (p *Process) BaseURL() string { return p.baseURL }

// PID returns the server process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Exited reports whether the process has terminated.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM and kills the process if it has not exited after a
// grace period. Stop is idempotent.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		if p.Exited() {
			return
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.done:
		case <-time.After(stopGrace):
			_ = p.cmd.Process.Kill()
			<-p.done
		}
		p.log.Info().Str("event", "spawn_stop").Str("server", p.name).Int("pid", p.cmd.Process.Pid).Msg("modelserver")
	})
	return nil
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address")
	}
	return addr.Port, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
