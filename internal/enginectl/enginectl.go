// Package enginectl supervises the local inference server process: it
// resolves who owns the server port, launches and terminates the bundled
// binary, probes readiness, and decides when a stale instance should be
// recycled. The server is a singleton per port; at most one launch
// sequence runs at a time.
package enginectl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultBinName is the executable name of the supervised server.
const DefaultBinName = "ollama"

const (
	// DefaultReadyTimeout bounds how long EnsureReady waits for the server
	// to answer probes after a launch.
	DefaultReadyTimeout = 5 * time.Second
	// DefaultPollInterval is the pause between readiness probes.
	DefaultPollInterval = 500 * time.Millisecond
)

// Status is a point-in-time snapshot of the supervised server.
type Status struct {
	Running   bool      `json:"running"`
	Managed   bool      `json:"managed"`
	PID       int       `json:"pid,omitempty"`
	Port      int       `json:"port,omitempty"`
	BaseURL   string    `json:"base_url,omitempty"`
	ExePath   string    `json:"exe_path,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Controller owns the lifecycle of the server process bound to one fixed
// port. Construct it explicitly and share the instance deliberately; there
// is no global controller.
type Controller struct {
	Host    string
	Port    int
	BinPath string // optional explicit path to the server executable
	BinName string // executable name searched for when BinPath is unset
	LogDir  string // where captured engine output is written

	Prober *Prober

	// ResolvePID maps the port to its owning process. Overridable for
	// tests; nil selects the OS-backed resolver.
	ResolvePID func(port int) (int32, bool)

	// ListProcs enumerates candidate processes for the orphan sweep.
	// Overridable for tests; nil selects the OS-backed lister.
	ListProcs func() ([]Proc, error)

	ownPID int
	flight singleflight.Group

	mu        sync.Mutex
	cmd       *exec.Cmd
	exePath   string
	startedAt time.Time
	outLog    io.WriteCloser
	errLog    io.WriteCloser
	tail      *outputRing
}

// NewController builds a controller for the server expected on host:port.
func NewController(host string, port int, binPath, logDir string) *Controller {
	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	return &Controller{
		Host:    host,
		Port:    port,
		BinPath: binPath,
		BinName: DefaultBinName,
		LogDir:  logDir,
		Prober:  NewProber(baseURL),
		ownPID:  os.Getpid(),
		tail:    newOutputRing(defaultRingCapacity),
	}
}

// BaseURL returns the server's HTTP base endpoint.
func (c *Controller) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func (c *Controller) resolver() func(int) (int32, bool) {
	if c.ResolvePID != nil {
		return c.ResolvePID
	}
	return ResolvePID
}

func (c *Controller) binName() string {
	if c.BinName != "" {
		return c.BinName
	}
	return DefaultBinName
}

// Proc is the slice of process behavior the orphan sweep touches.
type Proc interface {
	ID() int32
	Name() (string, error)
	Kill() error
}

type sysProc struct{ *process.Process }

func (p sysProc) ID() int32 { return p.Pid }

func listSysProcs() ([]Proc, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(procs))
	for _, p := range procs {
		out = append(out, sysProc{p})
	}
	return out, nil
}

func (c *Controller) lister() func() ([]Proc, error) {
	if c.ListProcs != nil {
		return c.ListProcs
	}
	return listSysProcs
}

// IsRunning reports whether some process is bound to the server port.
func (c *Controller) IsRunning() bool {
	_, ok := c.resolver()(c.Port)
	return ok
}

// Kill terminates whatever process owns the server port. It returns false
// when the port is free (nothing to do) and, unconditionally, when the
// resolved pid is this process itself; the self-kill guard is a silent
// no-op, not an error. Delivery is fire-and-forget: the signal is
// dispatched and the method does not wait for the process to die.
func (c *Controller) Kill() bool {
	pid, ok := c.resolver()(c.Port)
	if !ok {
		return false
	}
	if int(pid) == c.ownPID {
		log.Warnf("enginectl: port %d resolves to our own pid %d, refusing to kill", c.Port, pid)
		return false
	}
	p, err := os.FindProcess(int(pid))
	if err != nil {
		return false
	}
	// Best-effort graceful: attempt to interrupt on non-Windows.
	if runtime.GOOS != "windows" {
		_ = p.Signal(os.Interrupt)
		time.Sleep(200 * time.Millisecond)
	}
	_ = p.Kill()
	log.Infof("enginectl: killed pid %d on port %d", pid, c.Port)
	return true
}

// KillOrphans sweeps every process whose executable name matches the
// server binary, not just the one on the known port. Used after a
// single-pid kill that may have left forked children behind. Failures are
// logged and never escalated; this is cleanup, not correctness.
func (c *Controller) KillOrphans() {
	procs, err := c.lister()()
	if err != nil {
		log.Warnf("enginectl: orphan sweep: listing processes: %v", err)
		return
	}
	want := c.binName()
	for _, p := range procs {
		if int(p.ID()) == c.ownPID {
			continue
		}
		name, err := p.Name()
		if err != nil {
			continue
		}
		name = strings.TrimSuffix(name, ".exe")
		if name != want {
			continue
		}
		if err := p.Kill(); err != nil {
			log.Warnf("enginectl: orphan sweep: kill pid %d: %v", p.ID(), err)
			continue
		}
		log.Infof("enginectl: orphan sweep: killed %s pid %d", want, p.ID())
	}
}

// Launch starts the server binary as `<binary> serve`. When the prober
// already sees a live server on the port (and force is false) the launch
// is a logged no-op; two servers must never bind the port from our
// management. Otherwise any stale occupant is killed first, followed by
// an orphan sweep in case the kill left forked children behind. The
// spawn is asynchronous: Launch returns once the process is started, and
// readiness is a separate explicit wait.
func (c *Controller) Launch(ctx context.Context, force bool) error {
	if !force && c.Prober != nil && c.Prober.Probe(ctx) {
		log.Infof("enginectl: server already live on port %d, skipping launch", c.Port)
		return nil
	}
	if c.Kill() {
		c.KillOrphans()
	}

	exe, err := resolveBinary(c.BinPath, c.binName())
	if err != nil {
		return err
	}

	if err := c.ensureLogWriters(); err != nil {
		return fmt.Errorf("enginectl: engine log setup: %w", err)
	}

	cmd := exec.Command(exe, "serve")
	setSysProcAttr(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("enginectl: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("enginectl: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("enginectl: start %s: %w", exe, err)
	}
	log.Infof("enginectl: launched %s serve pid=%d port=%d", exe, cmd.Process.Pid, c.Port)

	// Publish the handle before the reaper starts: a child that exits
	// immediately must find c.cmd set, or the clear in reap is a no-op
	// and Status would report a dead process as managed.
	c.mu.Lock()
	c.cmd = cmd
	c.exePath = exe
	c.startedAt = time.Now()
	c.mu.Unlock()

	// Drain both pipes for the life of the process so the child never
	// blocks on a full pipe buffer. Output is only for diagnostics.
	go drainPipe(stdout, c.outLog, nil)
	go drainPipe(stderr, c.errLog, c.tail)
	go c.reap(cmd)
	return nil
}

// reap waits for the child so it never zombies, and logs abnormal exits
// with a stderr tail.
func (c *Controller) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	c.mu.Lock()
	if c.cmd == cmd {
		c.cmd = nil
	}
	c.mu.Unlock()
	if err != nil {
		tail := c.tail.Tail()
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		log.Warnf("enginectl: server pid=%d exited: %v; stderr tail: %s", cmd.Process.Pid, err, strings.Join(tail, " | "))
		return
	}
	log.Infof("enginectl: server pid=%d exited cleanly", cmd.Process.Pid)
}

// EnsureReady is the single serialization point for the decide-then-act
// sequence: (restart if asked) -> launch if absent -> wait for readiness.
// Concurrent callers collapse onto one in-flight sequence and share its
// outcome, so two calls that both decide a restart is due cannot
// double-launch.
func (c *Controller) EnsureReady(ctx context.Context, restart bool, timeout, pollInterval time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	_, err, _ := c.flight.Do("ensure-ready", func() (interface{}, error) {
		if restart {
			if err := c.Launch(ctx, true); err != nil {
				return nil, err
			}
		} else if !c.IsRunning() {
			if err := c.Launch(ctx, false); err != nil {
				return nil, err
			}
		}
		if c.Prober == nil {
			return nil, nil
		}
		return nil, c.Prober.WaitUntilReady(ctx, timeout, pollInterval)
	})
	return err
}

// Status reports a snapshot of the supervised server.
func (c *Controller) Status(ctx context.Context) Status {
	st := Status{
		Port:    c.Port,
		BaseURL: c.BaseURL(),
	}
	if c.Prober != nil {
		st.Running = c.Prober.Probe(ctx)
	}
	if pid, ok := c.resolver()(c.Port); ok {
		st.PID = int(pid)
	}
	c.mu.Lock()
	st.Managed = c.cmd != nil
	st.ExePath = c.exePath
	st.StartedAt = c.startedAt
	c.mu.Unlock()
	return st
}

// StderrTail returns the most recent captured stderr lines, oldest first.
func (c *Controller) StderrTail() []string {
	return c.tail.Tail()
}

// Close releases the engine log writers. The supervised process itself is
// left running; stopping it is an explicit Kill.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outLog != nil {
		_ = c.outLog.Close()
		c.outLog = nil
	}
	if c.errLog != nil {
		_ = c.errLog.Close()
		c.errLog = nil
	}
	return nil
}

func (c *Controller) ensureLogWriters() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outLog != nil && c.errLog != nil {
		return nil
	}
	dir := c.LogDir
	if dir == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			dir = filepath.Join(cache, "ollamactl", "logs")
		} else {
			dir = filepath.Join(os.TempDir(), "ollamactl-logs")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	c.outLog = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "engine.out.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	c.errLog = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "engine.err.log"),
		MaxSize:    10,
		MaxBackups: 3,
	}
	return nil
}
