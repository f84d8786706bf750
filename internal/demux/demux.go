// Package demux recovers (stdout, stderr) records from a subprocess output stream.
package demux

import (
	"bytes"
	"strings"
)

const (
	// Separator splits a line into its stdout half and its stderr half.
	Separator = '\t'

	// Terminator ends a line.
	Terminator = '\n'

	// FlattenedNewline is the token the wrapped tool writes in place of a
	// newline so that multi-line text fits on one line.
	FlattenedNewline = " <NL> "
)

// Record is one demultiplexed line.
type Record struct {
	Stdout string
	Stderr string
}

// IsEmpty reports whether both halves of the record are empty.
func (r Record) IsEmpty() bool {
	return r.Stdout == "" && r.Stderr == ""
}

// Demuxer accumulates output bytes and yields complete lines as records.
// It is not safe for concurrent use; each output stream owns one.
type Demuxer struct {
	buf   []byte
	split func(line []byte) Record
}

// New creates an empty Demuxer for a stream that follows the tab convention.
func New() *Demuxer {
	return &Demuxer{split: SplitLine}
}

// NewStderr creates an empty Demuxer for a plain error stream. Lines are
// framed the same way but carried whole in Stderr.
func NewStderr() *Demuxer {
	return &Demuxer{split: StderrLine}
}

// Feed appends chunk to the buffer and returns a record for every complete
// line. Bytes after the last terminator stay buffered for the next call.
func (d *Demuxer) Feed(chunk []byte) []Record {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	last := bytes.LastIndexByte(d.buf, Terminator)
	if last < 0 {
		return nil
	}

	complete := d.buf[:last]
	records := make([]Record, 0, bytes.Count(complete, []byte{Terminator})+1)
	for _, line := range bytes.Split(complete, []byte{Terminator}) {
		records = append(records, d.split(line))
	}

	// Copy the remainder so the consumed prefix can be collected.
	rest := d.buf[last+1:]
	d.buf = append(make([]byte, 0, len(rest)), rest...)

	return records
}

// Flush returns the buffered partial line, if any, and empties the buffer.
// Call it once the stream has ended.
func (d *Demuxer) Flush() (Record, bool) {
	if len(d.buf) == 0 {
		return Record{}, false
	}
	rec := d.split(d.buf)
	d.buf = nil
	return rec, true
}

// Pending returns a copy of the bytes not yet emitted as a record.
func (d *Demuxer) Pending() []byte {
	if len(d.buf) == 0 {
		return nil
	}
	out := make([]byte, len(d.buf))
	copy(out, d.buf)
	return out
}

// SplitLine converts one line, without its terminator, into a record.
// The line is split at the first separator; a line without one is all stdout.
func SplitLine(line []byte) Record {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	i := bytes.IndexByte(line, Separator)
	if i < 0 {
		return Record{Stdout: Unflatten(string(line))}
	}
	return Record{
		Stdout: Unflatten(string(line[:i])),
		Stderr: Unflatten(string(line[i+1:])),
	}
}

// StderrLine converts one line of a plain error stream into a record. Only a
// trailing carriage return is removed.
func StderrLine(line []byte) Record {
	return Record{Stderr: string(bytes.TrimSuffix(line, []byte{'\r'}))}
}

// Unflatten restores newlines the writer replaced with FlattenedNewline.
func Unflatten(s string) string {
	return strings.ReplaceAll(s, FlattenedNewline, "\n")
}
