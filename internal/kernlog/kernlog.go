// Package kernlog provides the kernel's diagnostic log sink.
//
// The core never unwinds on error (spec.md §7): every fallible operation in
// the heap, stack, process and scheduler packages emits exactly one
// structured event through a Logger instead of returning an error the
// caller must handle. This mirrors how the original C core called
// serial_puts for every diagnostic, except here the sink is a structured
// logiface logger backed by stumpy, writing one JSON line per event.
package kernlog

import (
	"io"
	"os"

	"github.com/gokacchi/kernel/internal/kernelerr"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps a *logiface.Logger[*stumpy.Event], the concrete event type
// this package standardizes on.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New constructs a Logger writing one JSON line per event to w.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		l: stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(w))),
	}
}

// Discard is a Logger whose events are never written anywhere, used as the
// zero-value default so a Kernel or core type constructed without an
// explicit Logger still works.
func Discard() *Logger {
	return New(io.Discard)
}

// Warn emits a warning-level diagnostic, used for recoverable misuse such
// as double-free, invalid-free, table-full, or mailbox-full.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.l.Warning(), msg, fields)
}

// Info emits an informational diagnostic, used for routine lifecycle
// events: process creation, termination, required-time completion, quantum
// expiry, aging boosts, and a receive that blocks on an empty mailbox.
func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.l.Info(), msg, fields)
}

// Error emits an error-level diagnostic, used for resource exhaustion
// (out-of-memory, stack-exhausted).
func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.l.Err(), msg, fields)
}

func (l *Logger) emit(b *logiface.Builder[*stumpy.Event], msg string, fields []Field) {
	for _, f := range fields {
		f(b)
	}
	b.Log(msg)
}

// Field decorates a log builder with one structured field. Use the
// constructors below rather than constructing Field literals directly.
type Field func(b *logiface.Builder[*stumpy.Event])

// PID attaches a process id field.
func PID(pid uint32) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Uint64(`pid`, uint64(pid)) }
}

// Addr attaches a heap/stack address field.
func Addr(addr uint32) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Uint64(`addr`, uint64(addr)) }
}

// Size attaches a byte-size field.
func Size(size uint32) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Uint64(`size`, uint64(size)) }
}

// Str attaches an arbitrary string field.
func Str(key, val string) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Str(key, val) }
}

// Int attaches an arbitrary integer field.
func Int(key string, val int) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Int(key, val) }
}

// Kind attaches the kernelerr.Kind a diagnostic corresponds to, so a
// structured-log consumer can recover the same taxonomy a caller gets from
// the paired *kernelerr.Error via errors.As.
func Kind(k kernelerr.Kind) Field {
	return func(b *logiface.Builder[*stumpy.Event]) { b.Str(`kind`, k.String()) }
}
