// Package status carries short human-readable progress updates to whatever
// display the host offers.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Icon is an optional face token shown next to a status.
type Icon string

const (
	IconNone        Icon = ""
	IconIdle        Icon = "(￣ヘ￣)"
	IconReady       Icon = "(◠‿◠)"
	IconProgress    Icon = "(☉_☉)"
	IconEmpty       Icon = "(-_-)"
	IconInvalid     Icon = "(╯°□°)╯"
	IconReadError   Icon = "(>_<)"
	IconLimit       Icon = "(⌐■_■)"
	IconThrottled   Icon = "(︶︹︺)"
	IconWaiting     Icon = "(￣ω￣)"
	IconUploading   Icon = "(◕‿◕)"
	IconSuccess     Icon = "(ᵔ◡◡ᵔ)"
	IconRemoteError Icon = "(×_×)"
	IconOffline     Icon = "(×﹏×)"
	IconSad         Icon = "(╥_╥)"
)

// Sink receives status updates. Implementations must not block for long.
type Sink interface {
	Report(text string, icon Icon)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string, icon Icon)

// Report implements Sink.
func (f SinkFunc) Report(text string, icon Icon) {
	if f != nil {
		f(text, icon)
	}
}

// Nop discards every update.
var Nop Sink = SinkFunc(func(string, Icon) {})

// LogSink writes updates through the structured logger.
type LogSink struct {
	Logger *logging.Logger
}

// Report implements Sink.
func (s LogSink) Report(text string, icon Icon) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{}
	if icon != IconNone {
		fields = append(fields, zap.String("face", string(icon)))
	}
	s.Logger.Info("OHC-DISPLAY: "+flatten(text), fields...)
}

// WriterSink prints one line per update.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

// NewWriterSink returns a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{W: w}
}

// Report implements Sink.
func (s *WriterSink) Report(text string, icon Icon) {
	if s == nil || s.W == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if icon == IconNone {
		_, _ = fmt.Fprintln(s.W, flatten(text))
		return
	}
	_, _ = fmt.Fprintf(s.W, "%s %s\n", icon, flatten(text))
}

// Multi fans updates out to every sink.
func Multi(sinks ...Sink) Sink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return SinkFunc(func(text string, icon Icon) {
		for _, s := range active {
			s.Report(text, icon)
		}
	})
}

// Safe shields the caller from a misbehaving sink.
func Safe(sink Sink) Sink {
	if sink == nil {
		return Nop
	}
	return SinkFunc(func(text string, icon Icon) {
		defer func() { _ = recover() }()
		sink.Report(text, icon)
	})
}

// Recorder keeps every update in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is one recorded update.
type Entry struct {
	Text string `json:"text"`
	Icon Icon   `json:"icon,omitempty"`
}

// Report implements Sink.
func (r *Recorder) Report(text string, icon Icon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Text: text, Icon: icon})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Last returns the most recent update.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// Texts returns just the texts, in order.
func (r *Recorder) Texts() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func flatten(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}
