package driver

import (
	"regexp"

	"github.com/danghica/cliver/internal/demux"
)

// CjpmName is the name of the cjpm driver.
const CjpmName = "cjpm"

// DefaultCjpmArgs runs the package once in its interactive stdin mode.
var DefaultCjpmArgs = []string{"run", "--run-args=--serve-stdin"}

// CjpmDriver drives a Cangjie package through the cjpm build tool.
// cjpm prints a maintenance trailer when the run completes; the driver
// removes it so it never reaches the client.
type CjpmDriver struct {
	args []string

	// trailerPattern matches "cjpm run finished" and trailing whitespace.
	trailerPattern *regexp.Regexp
}

// NewCjpmDriver creates a cjpm driver. Empty args selects DefaultCjpmArgs.
func NewCjpmDriver(args []string) *CjpmDriver {
	if len(args) == 0 {
		args = DefaultCjpmArgs
	}
	return &CjpmDriver{
		args:           cloneArgs(args),
		trailerPattern: regexp.MustCompile(`\bcjpm run finished\s*`),
	}
}

// Name returns the name of the driver.
func (d *CjpmDriver) Name() string {
	return CjpmName
}

// Args returns the cjpm arguments.
func (d *CjpmDriver) Args() []string {
	return cloneArgs(d.args)
}

// Filter strips the run trailer from stdout. A record that only carried the
// trailer is dropped.
func (d *CjpmDriver) Filter(rec demux.Record) (demux.Record, bool) {
	if !d.trailerPattern.MatchString(rec.Stdout) {
		return rec, true
	}
	rec.Stdout = d.trailerPattern.ReplaceAllString(rec.Stdout, "")
	if rec.IsEmpty() {
		return rec, false
	}
	return rec, true
}
