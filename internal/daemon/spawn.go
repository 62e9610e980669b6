package daemon

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/paths"
)

const (
	pingTimeout  = 2 * time.Second
	dialTimeout  = 500 * time.Millisecond
	startTimeout = 5 * time.Second
	startPoll    = 50 * time.Millisecond
)

// HiddenCommand is the argv[1] a spawned daemon process is started with.
const HiddenCommand = "__daemon"

var errNotRunning = errors.New("daemon is not running")

// launcher finds the daemon that owns the runtime directory, starting one
// when nobody answers with the published nonce.
type launcher struct {
	socket string
	state  string
	lock   string

	ping  func(socket, nonce string) error
	start func() error
	poll  time.Duration
	limit time.Duration
}

func newLauncher() *launcher {
	return &launcher{
		socket: paths.SocketPath(),
		state:  paths.StatePath(),
		lock:   paths.LockPath(),
		ping: func(socket, nonce string) error {
			return ipc.Ping(socket, nonce, pingTimeout)
		},
		start: startDaemonProcess,
		poll:  startPoll,
		limit: startTimeout,
	}
}

// Connect returns a session on a running daemon, starting one first when
// needed.
func Connect() (*ipc.Client, error) {
	l := newLauncher()
	nonce, err := l.ensure()
	if err != nil {
		return nil, err
	}
	return ipc.Dial(l.socket, nonce)
}

// ConnectExisting returns a session on an already running daemon.
func ConnectExisting() (*ipc.Client, error) {
	l := newLauncher()
	nonce, err := loadNonce(l.state)
	if err != nil || !ipc.Reachable(l.socket, dialTimeout) {
		return nil, errNotRunning
	}
	return ipc.Dial(l.socket, nonce)
}

// ensure returns the nonce of a daemon that accepts it. Callers in other
// processes are serialized on the lock file so only one of them starts a
// daemon.
func (l *launcher) ensure() (string, error) {
	if err := paths.EnsureDir(paths.RuntimeDir()); err != nil {
		return "", fmt.Errorf("creating runtime dir: %w", err)
	}
	unlock, err := lockFile(l.lock)
	if err != nil {
		return "", fmt.Errorf("acquiring daemon lock: %w", err)
	}
	defer unlock() //nolint:errcheck

	if nonce, ok := l.running(); ok {
		return nonce, nil
	}
	if err := l.start(); err != nil {
		return "", err
	}
	return l.awaitReady()
}

// running reports the nonce of a live daemon. A daemon that rejects the
// published nonce twice is treated as stale and its files are removed.
func (l *launcher) running() (string, bool) {
	nonce, err := loadNonce(l.state)
	if err != nil {
		return "", false
	}
	err = l.ping(l.socket, nonce)
	if err == nil {
		return nonce, true
	}
	if !errors.Is(err, ipc.ErrNonceRejected) {
		return "", false
	}
	// The daemon may have restarted between reading state and pinging.
	if fresh, ferr := loadNonce(l.state); ferr == nil && fresh != nonce && l.ping(l.socket, fresh) == nil {
		return fresh, true
	}
	removeRuntimeFiles(l.socket, l.state)
	return "", false
}

func (l *launcher) awaitReady() (string, error) {
	deadline := time.Now().Add(l.limit)
	for time.Now().Before(deadline) {
		if nonce, err := loadNonce(l.state); err == nil && l.ping(l.socket, nonce) == nil {
			return nonce, nil
		}
		time.Sleep(l.poll)
	}
	return "", fmt.Errorf("daemon did not start within %s", l.limit)
}

func removeRuntimeFiles(files ...string) {
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func clearDaemonRuntimeState() {
	removeRuntimeFiles(paths.SocketPath(), paths.StatePath())
}

func lockFile(path string) (func() error, error) {
	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return fl.Unlock, nil
}

func startDaemonProcess() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer null.Close()

	cmd := daemonCommand(exe, null)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning daemon: %w", err)
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// daemonCommand runs exe in daemon mode with all standard streams on null.
func daemonCommand(exe string, null *os.File) *exec.Cmd {
	cmd := exec.Command(exe, HiddenCommand)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = null, null, null
	return cmd
}

// loadNonce reads the nonce the running daemon published in path.
func loadNonce(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	nonce := strings.TrimSpace(string(data))
	if nonce == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return nonce, nil
}

// publishNonce writes a fresh random nonce to path, readable by the owner
// only.
func publishNonce(path string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	nonce := hex.EncodeToString(b)
	if err := os.WriteFile(path, []byte(nonce+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing nonce: %w", err)
	}
	return nonce, nil
}
