/*
Copyright 2022 The Flux authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package action provides a bounded tail buffer for the output of external
// tool invocations (helmfile apply/destroy), so a failed reconcile can
// attach a short, deduplicated excerpt of stderr without holding the
// whole output in memory.
package action

import (
	"bytes"
	"container/ring"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// nowTS returns the current time, and exists as a package variable so tests
// can substitute a deterministic clock.
var nowTS = func() time.Time {
	return time.Now().UTC()
}

// defaultBufferSize is used when NewLogBuffer is given a non-positive size.
const defaultBufferSize = 10

// DebugLog logs a single formatted line.
type DebugLog func(format string, v ...interface{})

// NewDebugLog returns a DebugLog backed by log, logged at debug verbosity.
func NewDebugLog(log logr.Logger) DebugLog {
	return func(format string, v ...interface{}) {
		log.V(1).Info(fmt.Sprintf(format, v...))
	}
}

type logLine struct {
	ts  time.Time
	msg string
}

// LogBuffer is a fixed-size, concurrency-safe tail of the most recently
// logged lines.
type LogBuffer struct {
	log  DebugLog
	size int

	mu     sync.Mutex
	buffer *ring.Ring
}

// NewLogBuffer returns a LogBuffer that forwards every line to log while
// retaining at most size lines (defaultBufferSize if size is non-positive).
func NewLogBuffer(log DebugLog, size int) *LogBuffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &LogBuffer{
		log:    log,
		size:   size,
		buffer: ring.New(size),
	}
}

// Log formats and forwards the line to the underlying DebugLog, then stores
// it in the ring.
func (l *LogBuffer) Log(format string, v ...interface{}) {
	l.log(format, v...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer.Value = logLine{ts: nowTS(), msg: fmt.Sprintf(format, v...)}
	l.buffer = l.buffer.Next()
}

// Len returns the number of lines currently held.
func (l *LogBuffer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	l.buffer.Do(func(v interface{}) {
		if v != nil {
			n++
		}
	})
	return n
}

// Reset clears the buffer's content without changing its capacity.
func (l *LogBuffer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer = ring.New(l.size)
}

// String renders the buffered lines oldest-first, one per line prefixed
// with the RFC3339Nano timestamp it was logged at, collapsing runs of
// consecutive identical lines down to their first and last occurrence with
// a "N duplicate lines omitted" marker.
func (l *LogBuffer) String() string {
	l.mu.Lock()
	lines := make([]logLine, 0, l.size)
	l.buffer.Do(func(v interface{}) {
		if v != nil {
			lines = append(lines, v.(logLine))
		}
	})
	l.mu.Unlock()

	var out bytes.Buffer
	for i := 0; i < len(lines); i++ {
		run := 1
		for i+run < len(lines) && lines[i+run].msg == lines[i].msg {
			run++
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		fmt.Fprintf(&out, "%s %s", lines[i].ts.Format(time.RFC3339Nano), lines[i].msg)
		if run > 1 {
			last := lines[i+run-1]
			out.WriteByte('\n')
			fmt.Fprintf(&out, "%s %s", last.ts.Format(time.RFC3339Nano), last.msg)
			if run > 2 {
				omitted := run - 2
				unit := "line"
				if omitted > 1 {
					unit = "lines"
				}
				fmt.Fprintf(&out, " (%d duplicate %s omitted)", omitted, unit)
			}
		}
		i += run - 1
	}
	return out.String()
}
