package interrupt

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Behavior is what the user chose for the partial output of a stopped job.
type Behavior int

const (
	// Keep leaves partial artifacts on disk.
	Keep Behavior = iota
	// Discard removes partial artifacts.
	Discard
)

// String returns the string representation of the Behavior.
func (b Behavior) String() string {
	switch b {
	case Keep:
		return "Keep"
	case Discard:
		return "Discard"
	default:
		return fmt.Sprintf("Behavior(%d)", b)
	}
}

// ExitInterrupt is the exit code for interrupt (130 = 128 + SIGINT).
const ExitInterrupt = 130

// interruptWindow is how long after the first Ctrl+C a second one selects
// Discard.
const interruptWindow = 2 * time.Second

// pollInterval is how often WaitForDecision checks for a discard request.
const pollInterval = 100 * time.Millisecond

const (
	stoppingMessage = "\nStopping after the in-flight generation call..."
	discardMessage  = "Partial output will be discarded."
	abortMessage    = "\nAborted."
)

// Handler turns SIGINT/SIGTERM into job cancellation.
//
// The first signal cancels the job context. A second signal within the
// window marks partial output for discarding. Any signal after that, or a
// second signal once the window closed, exits the process immediately.
type Handler struct {
	mu             sync.Mutex
	firstInterrupt time.Time
	interrupted    bool
	discard        bool
	stopped        bool
	cancelFunc     context.CancelFunc
	done           chan struct{}

	exitFunc func(int)
	nowFunc  func() time.Time
	stderr   io.Writer
}

// Options holds injectable dependencies for testing.
type Options struct {
	SigCh    <-chan os.Signal
	ExitFunc func(int)
	NowFunc  func() time.Time
	// Stderr must be safe for concurrent writes; the listener and
	// WaitForDecision both write to it.
	Stderr io.Writer
}

// NewHandler creates a handler that listens for SIGINT/SIGTERM.
// Returns the handler and a context that is canceled on first interrupt.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return newHandler(parent, Options{SigCh: sigCh})
}

// NewHandlerWithOptions creates a handler with injectable dependencies.
func NewHandlerWithOptions(parent context.Context, opts Options) (*Handler, context.Context) {
	return newHandler(parent, opts)
}

func newHandler(parent context.Context, opts Options) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	exitFunc := opts.ExitFunc
	if exitFunc == nil {
		exitFunc = os.Exit
	}
	nowFunc := opts.NowFunc
	if nowFunc == nil {
		nowFunc = time.Now
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	h := &Handler{
		cancelFunc: cancel,
		done:       make(chan struct{}),
		exitFunc:   exitFunc,
		nowFunc:    nowFunc,
		stderr:     stderr,
	}

	if opts.SigCh != nil {
		go h.listen(opts.SigCh)
	}

	return h, ctx
}

func (h *Handler) listen(sigCh <-chan os.Signal) {
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			if h.handle() {
				return
			}
		}
	}
}

// handle processes one signal and reports whether the listener should exit.
func (h *Handler) handle() bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	now := h.nowFunc()

	switch {
	case !h.interrupted:
		h.interrupted = true
		h.firstInterrupt = now
		h.cancelFunc()
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.stderr, stoppingMessage)
		return false

	case !h.discard && now.Sub(h.firstInterrupt) <= interruptWindow:
		h.discard = true
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.stderr, discardMessage)
		return false

	default:
		h.mu.Unlock()
		_, _ = fmt.Fprintln(h.stderr, abortMessage)
		h.exitFunc(ExitInterrupt)
		return true
	}
}

// WasInterrupted returns true if at least one interrupt was received.
func (h *Handler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}

// WaitForDecision waits out the rest of the interrupt window and returns
// Discard if a second Ctrl+C arrived, Keep otherwise. message is shown
// while waiting. Without an interrupt it returns Keep immediately.
func (h *Handler) WaitForDecision(message string) Behavior {
	h.mu.Lock()
	if !h.interrupted {
		h.mu.Unlock()
		return Keep
	}
	if h.discard {
		h.mu.Unlock()
		return Discard
	}
	firstInterrupt := h.firstInterrupt
	h.mu.Unlock()

	remaining := interruptWindow - h.nowFunc().Sub(firstInterrupt)
	if remaining <= 0 {
		return Keep
	}

	_, _ = fmt.Fprintln(h.stderr, message)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(remaining)
	defer deadline.Stop()

	for {
		select {
		case <-deadline.C:
			if h.discarding() {
				return Discard
			}
			return Keep
		case <-ticker.C:
			if h.discarding() {
				return Discard
			}
		}
	}
}

func (h *Handler) discarding() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.discard
}

// Stop cleans up the handler. Should be called when done.
func (h *Handler) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	signal.Reset(syscall.SIGINT, syscall.SIGTERM)
	close(h.done)
}
