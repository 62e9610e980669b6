package daemon

import (
	"sync"
	"time"
)

// Keepalive runs a sliding idle window over attached UI sessions. Once no
// session has been attached for the whole timeout, onIdle fires.
type Keepalive struct {
	mu          sync.Mutex
	timer       *time.Timer
	timerID     uint64
	nextTimerID uint64
	active      int
	timeout     time.Duration
	stopped     bool
	onIdle      func()
}

// NewKeepalive creates a keepalive with the given idle timeout. A timeout
// of zero disables idle shutdown.
func NewKeepalive(timeout time.Duration) *Keepalive {
	return &Keepalive{timeout: timeout}
}

// SetOnIdle configures the callback fired when the idle timer expires with
// no session attached.
func (k *Keepalive) SetOnIdle(fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.onIdle = fn
}

// Observe records the current number of attached sessions. The timer is
// cancelled while any session is attached and restarted when the last one
// leaves.
func (k *Keepalive) Observe(active int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.active = active
	if active > 0 {
		k.stopTimerLocked()
		return
	}
	k.startTimerLocked()
}

func (k *Keepalive) stopTimerLocked() {
	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
		k.timerID = 0
	}
}

func (k *Keepalive) startTimerLocked() {
	k.stopTimerLocked()
	if k.timeout <= 0 || k.stopped {
		return
	}

	k.nextTimerID++
	timerID := k.nextTimerID
	k.timer = time.AfterFunc(k.timeout, func() {
		k.expire(timerID)
	})
	k.timerID = timerID
}

func (k *Keepalive) expire(timerID uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.timerID != timerID || k.active > 0 || k.stopped {
		return
	}

	k.timer = nil
	k.timerID = 0
	if k.onIdle != nil {
		go k.onIdle()
	}
}

// Stop cancels the timer. Later Observe calls have no effect.
func (k *Keepalive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopTimerLocked()
	k.stopped = true
}
