package snapfile

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is how long the store waits for further mutations
// before writing. A crash inside the window loses at most the updates since
// the last completed write.
const DefaultDebounceWindow = 300 * time.Millisecond

// saveTimer abstracts time.AfterFunc so tests can fire the pending write
// deterministically instead of sleeping.
type saveTimer interface {
	Stop() bool
}

// TimerFactory creates a timer that calls fire after the delay elapses.
type TimerFactory func(delay time.Duration, fire func()) saveTimer

func wallClockTimer(delay time.Duration, fire func()) saveTimer {
	return time.AfterFunc(delay, fire)
}

// Debouncer coalesces save requests into a single deferred write. It holds a
// single pending slot: Idle -> PendingSave -> Writing -> Idle, where a
// request during PendingSave re-arms the timer.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	newTimer TimerFactory
	pending  saveTimer
	flush    func()
}

// NewDebouncer builds a wall-clock debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:   window,
		newTimer: wallClockTimer,
	}
}

// NewDebouncerWithTimer builds a debouncer with an injected timer factory.
func NewDebouncerWithTimer(window time.Duration, factory TimerFactory) *Debouncer {
	return &Debouncer{
		window:   window,
		newTimer: factory,
	}
}

// Schedule arms the pending write, or re-arms it when one is already
// pending. It never blocks the caller.
func (debouncer *Debouncer) Schedule() {
	debouncer.mu.Lock()
	defer debouncer.mu.Unlock()
	if debouncer.pending != nil {
		debouncer.pending.Stop()
	}
	debouncer.pending = debouncer.newTimer(debouncer.window, debouncer.fire)
}

// Stop cancels any pending write without flushing.
func (debouncer *Debouncer) Stop() {
	debouncer.mu.Lock()
	defer debouncer.mu.Unlock()
	if debouncer.pending != nil {
		debouncer.pending.Stop()
		debouncer.pending = nil
	}
}

func (debouncer *Debouncer) fire() {
	debouncer.mu.Lock()
	debouncer.pending = nil
	flush := debouncer.flush
	debouncer.mu.Unlock()
	if flush != nil {
		flush()
	}
}
