package demux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemuxer_Feed(t *testing.T) {
	testCases := []struct {
		name    string
		chunks  []string
		want    []Record
		pending string
	}{
		{
			name:   "single line without separator",
			chunks: []string{"hello\n"},
			want:   []Record{{Stdout: "hello"}},
		},
		{
			name:   "line with separator",
			chunks: []string{"out\terr\n"},
			want:   []Record{{Stdout: "out", Stderr: "err"}},
		},
		{
			name:   "splits at first separator only",
			chunks: []string{"a\tb\tc\n"},
			want:   []Record{{Stdout: "a", Stderr: "b\tc"}},
		},
		{
			name:    "chunk without terminator only buffers",
			chunks:  []string{"partial"},
			want:    nil,
			pending: "partial",
		},
		{
			name:    "line split across chunks",
			chunks:  []string{"Comm", "ands:\t", "\nnext"},
			want:    []Record{{Stdout: "Commands:"}},
			pending: "next",
		},
		{
			name:   "several lines in one chunk",
			chunks: []string{"one\n\ttwo\nthree\t3\n"},
			want: []Record{
				{Stdout: "one"},
				{Stderr: "two"},
				{Stdout: "three", Stderr: "3"},
			},
		},
		{
			name:   "flattened newlines are restored",
			chunks: []string{"Commands: <NL>   help <NL>   demo\tbad <NL> worse\n"},
			want:   []Record{{Stdout: "Commands:\n  help\n  demo", Stderr: "bad\nworse"}},
		},
		{
			name:   "carriage return before terminator is dropped",
			chunks: []string{"ref:1\t\r\n"},
			want:   []Record{{Stdout: "ref:1"}},
		},
		{
			name:   "empty line yields empty record",
			chunks: []string{"\n"},
			want:   []Record{{}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := New()
			var got []Record
			for _, chunk := range tc.chunks {
				got = append(got, d.Feed([]byte(chunk))...)
			}
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.pending, string(d.Pending()))
		})
	}
}

func TestDemuxer_FeedEmptyChunk(t *testing.T) {
	d := New()
	assert.Nil(t, d.Feed(nil))
	assert.Nil(t, d.Feed([]byte{}))
	assert.Nil(t, d.Pending())
}

func TestDemuxer_Flush(t *testing.T) {
	d := New()
	require.Empty(t, d.Feed([]byte("tail\twithout newline")))

	rec, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, Record{Stdout: "tail", Stderr: "without newline"}, rec)

	_, ok = d.Flush()
	assert.False(t, ok, "second flush should find nothing buffered")
}

func TestStderrDemuxer(t *testing.T) {
	d := NewStderr()

	assert.Empty(t, d.Feed([]byte("par")))
	assert.Equal(t, []Record{{Stderr: "partial"}}, d.Feed([]byte("tial\n")))

	recs := d.Feed([]byte("a\tb <NL> c\r\nerror: "))
	assert.Equal(t, []Record{{Stderr: "a\tb <NL> c"}}, recs, "tabs and tokens stay as written")

	rec, ok := d.Flush()
	require.True(t, ok)
	assert.Equal(t, Record{Stderr: "error: "}, rec)
}

func TestUnflatten(t *testing.T) {
	assert.Equal(t, "a\nb", Unflatten("a <NL> b"))
	assert.Equal(t, "no token", Unflatten("no token"))
	assert.Equal(t, "<NL>", Unflatten("<NL>"), "token requires surrounding spaces")
}

func TestRecord_IsEmpty(t *testing.T) {
	assert.True(t, Record{}.IsEmpty())
	assert.False(t, Record{Stderr: "x"}.IsEmpty())
}
