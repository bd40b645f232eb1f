// Package scanner turns the keystroke stream of a keyboard-emulating barcode
// scanner into discrete scan events.
package scanner

import (
	"sync"
	"time"
	"unicode"

	"github.com/yousufaayman/barcode-manage-cpc-sub000/models"
)

// DefaultQuietInterval is how long the decoder waits after the last key
// before it treats the buffered characters as one complete scan.
const DefaultQuietInterval = 50 * time.Millisecond

// Mode selects where keystrokes come from.
type Mode string

const (
	// ModeHardware buffers keystrokes from the scanner.
	ModeHardware Mode = "hardware"
	// ModeManual ignores keystrokes; codes arrive already typed.
	ModeManual Mode = "manual"
)

func (m Mode) Valid() bool {
	return m == ModeHardware || m == ModeManual
}

// Special key names. Anything longer than one rune that is not Enter is
// treated as a non-printable key.
const (
	KeyEnter = "Enter"
)

// KeyEvent is one key press as reported by the client.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
	Shift bool   `json:"shift,omitempty"`
}

// Decoder is a small timing state machine. A scan ends on Enter or after
// the quiet interval passes with no key. The emit callback runs with the
// decoder lock held and must not call back into the decoder.
type Decoder struct {
	clock Clock
	quiet time.Duration
	emit  func(models.ScanEvent)

	mu     sync.Mutex
	mode   Mode
	buffer []rune
	timer  Timer
	gen    uint64
	closed bool
}

func NewDecoder(clock Clock, quiet time.Duration, emit func(models.ScanEvent)) *Decoder {
	if clock == nil {
		clock = RealClock{}
	}
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	return &Decoder{clock: clock, quiet: quiet, emit: emit, mode: ModeHardware}
}

// HandleKey feeds one key press to the decoder.
func (d *Decoder) HandleKey(ev KeyEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.mode != ModeHardware {
		return
	}

	if ev.Key == KeyEnter {
		d.stopTimer()
		d.flush()
		return
	}

	r, ok := printableRune(ev)
	if !ok {
		return
	}

	d.stopTimer()
	d.buffer = append(d.buffer, r)
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.expire(gen) })
}

func (d *Decoder) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || gen != d.gen {
		return
	}
	d.timer = nil
	d.flush()
}

// SetMode switches the input mode and drops anything half-scanned.
func (d *Decoder) SetMode(mode Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimer()
	d.buffer = d.buffer[:0]
	d.mode = mode
}

func (d *Decoder) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// Close stops the decoder. Buffered keys are dropped and a timer that
// fires afterwards does nothing.
func (d *Decoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopTimer()
	d.buffer = nil
	d.closed = true
}

// Buffered returns the characters waiting for the end of a scan.
func (d *Decoder) Buffered() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.buffer)
}

// stopTimer cancels the pending timer and invalidates any callback that
// has already started. Caller holds mu.
func (d *Decoder) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// flush emits the buffer as one event. Caller holds mu.
func (d *Decoder) flush() {
	if len(d.buffer) == 0 {
		return
	}
	code := string(d.buffer)
	d.buffer = d.buffer[:0]
	if d.emit != nil {
		d.emit(models.ScanEvent{
			Code:       code,
			ObservedAt: d.clock.Now(),
			Source:     models.ScanSourceHardware,
		})
	}
}

func printableRune(ev KeyEvent) (rune, bool) {
	if ev.Ctrl || ev.Alt || ev.Meta {
		return 0, false
	}
	runes := []rune(ev.Key)
	if len(runes) != 1 {
		return 0, false
	}
	if !unicode.IsPrint(runes[0]) {
		return 0, false
	}
	return runes[0], true
}
