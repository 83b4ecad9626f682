// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"bytes"
	"iter"
)

// DefaultDelimiter is the line delimiter used by NewLineBuffer.
const DefaultDelimiter = "\r\n"

// Stream is the read/write contract LineBuffer layers over. Conn
// satisfies it; any other blocking-style byte source does too.
type Stream interface {
	Read() ([]byte, error)
	Write(p []byte) error
}

// LineBuffer frames a Stream into delimiter-terminated records. ReadLine
// returns the next complete record with the delimiter stripped, buffering
// any partial trailing fragment for the next call; WriteLine writes a
// record followed by the delimiter.
type LineBuffer struct {
	stream  Stream
	delim   []byte
	pending []byte
}

// NewLineBuffer wraps a stream with the default CRLF delimiter.
func NewLineBuffer(s Stream) *LineBuffer {
	return NewLineBufferDelim(s, DefaultDelimiter)
}

// NewLineBufferDelim wraps a stream with the given delimiter.
func NewLineBufferDelim(s Stream, delimiter string) *LineBuffer {
	return &LineBuffer{stream: s, delim: []byte(delimiter)}
}

// ReadLine returns the next delimiter-terminated record, delimiter
// stripped, reading from the stream until one is complete. Records are
// returned in FIFO order across calls; a chunk holding several records
// yields them one ReadLine at a time.
func (lb *LineBuffer) ReadLine() (string, error) {
	for {
		if i := bytes.Index(lb.pending, lb.delim); i >= 0 {
			line := string(lb.pending[:i])
			lb.pending = lb.pending[i+len(lb.delim):]
			return line, nil
		}
		p, err := lb.stream.Read()
		if err != nil {
			return "", err
		}
		lb.pending = append(lb.pending, p...)
	}
}

// WriteLine writes data followed by the delimiter.
func (lb *LineBuffer) WriteLine(data string) error {
	p := make([]byte, 0, len(data)+len(lb.delim))
	p = append(p, data...)
	p = append(p, lb.delim...)
	return lb.stream.Write(p)
}

// Lines returns the lazy sequence of lines produced by repeated ReadLine
// calls, ending when the underlying Read fails. The sequence is
// restartable: buffered state lives in the LineBuffer, so a new Lines
// iterator continues where the previous one stopped.
func (lb *LineBuffer) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			line, err := lb.ReadLine()
			if err != nil {
				return
			}
			if !yield(line) {
				return
			}
		}
	}
}
