package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghica/cliver/internal/demux"
)

func TestNew(t *testing.T) {
	d, err := New("", nil)
	require.NoError(t, err)
	assert.Equal(t, CjpmName, d.Name())
	assert.Equal(t, DefaultCjpmArgs, d.Args())

	d, err = New(GenericName, []string{"--interactive"})
	require.NoError(t, err)
	assert.Equal(t, GenericName, d.Name())
	assert.Equal(t, []string{"--interactive"}, d.Args())

	_, err = New("claude", nil)
	assert.Error(t, err)
}

func TestCjpmDriver_ArgsOverride(t *testing.T) {
	d := NewCjpmDriver([]string{"run", "--run-args=-i"})
	assert.Equal(t, []string{"run", "--run-args=-i"}, d.Args())

	args := d.Args()
	args[0] = "build"
	assert.Equal(t, "run", d.Args()[0], "Args must return a copy")
}

func TestCjpmDriver_Filter(t *testing.T) {
	d := NewCjpmDriver(nil)

	testCases := []struct {
		name string
		in   demux.Record
		want demux.Record
		keep bool
	}{
		{
			name: "ordinary output passes",
			in:   demux.Record{Stdout: "Commands:\n  help"},
			want: demux.Record{Stdout: "Commands:\n  help"},
			keep: true,
		},
		{
			name: "trailer only is dropped",
			in:   demux.Record{Stdout: "cjpm run finished"},
			keep: false,
		},
		{
			name: "trailer is stripped from longer output",
			in:   demux.Record{Stdout: "ref:1\ncjpm run finished\n"},
			want: demux.Record{Stdout: "ref:1\n"},
			keep: true,
		},
		{
			name: "trailer with stderr keeps the record",
			in:   demux.Record{Stdout: "cjpm run finished", Stderr: "warning"},
			want: demux.Record{Stderr: "warning"},
			keep: true,
		},
		{
			name: "stderr is never rewritten",
			in:   demux.Record{Stderr: "cjpm run finished"},
			want: demux.Record{Stderr: "cjpm run finished"},
			keep: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, keep := d.Filter(tc.in)
			assert.Equal(t, tc.keep, keep)
			if tc.keep {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestGenericDriver_Filter(t *testing.T) {
	d := NewGenericDriver(nil)
	rec := demux.Record{Stdout: "cjpm run finished"}
	got, keep := d.Filter(rec)
	assert.True(t, keep)
	assert.Equal(t, rec, got)
	assert.Empty(t, d.Args())
}
