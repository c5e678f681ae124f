package conversation

import (
	"strings"
	"sync"
	"time"

	"leadbot_backend/platform/logger"
)

// Inbound is the context a debounced flush hands to the downstream handler.
// The metadata fields always reflect the most recent fragment; Text holds
// the newline-joined fragments.
type Inbound struct {
	ConversationKey string
	Instance        string
	PushName        string
	MessageID       string
	Text            string
}

// FlushHandler receives the coalesced inbound context exactly once per
// quiet window.
type FlushHandler func(in Inbound)

type window struct {
	fragments []string
	latest    Inbound
	timer     *time.Timer
	gen       uint64
}

// Debouncer coalesces rapid inbound fragments per conversation key and
// fires the handler once after a quiet period. A new fragment for a pending
// key cancels the timer, appends, adopts the newer metadata and restarts
// the window.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	windows map[string]*window
	handler FlushHandler
	log     *logger.Logger
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(quiet time.Duration, handler FlushHandler, log *logger.Logger) *Debouncer {
	return &Debouncer{
		window:  quiet,
		windows: make(map[string]*window),
		handler: handler,
		log:     log,
	}
}

// Add records a fragment for the conversation key, starting or extending
// its quiet window.
func (d *Debouncer) Add(in Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := in.ConversationKey
	w, exists := d.windows[key]
	if !exists {
		w = &window{}
		d.windows[key] = w
	}

	if w.timer != nil {
		w.timer.Stop()
	}

	w.fragments = append(w.fragments, in.Text)
	w.latest = in
	w.gen++

	gen := w.gen
	w.timer = time.AfterFunc(d.window, func() {
		d.flush(key, gen)
	})
}

func (d *Debouncer) flush(key string, gen uint64) {
	d.mu.Lock()
	w, ok := d.windows[key]
	if !ok || w.gen != gen {
		// Superseded by a newer fragment; its own timer will fire.
		d.mu.Unlock()
		return
	}
	delete(d.windows, key)
	d.mu.Unlock()

	final := w.latest
	final.Text = strings.Join(w.fragments, "\n")

	defer func() {
		if r := recover(); r != nil && d.log != nil {
			d.log.Error("debounce handler panicked", "conversation", key, "panic", r)
		}
	}()
	d.handler(final)
}

// Len returns the number of pending windows.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.windows)
}
