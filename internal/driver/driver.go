// Package driver adapts the bridge to the command-line tool it wraps.
//
// A Driver decides how the tool is invoked and which of its output records
// reach the client. The bridge itself never interprets the tool's commands.
package driver

import (
	"fmt"

	"github.com/danghica/cliver/internal/demux"
)

// Driver describes a wrapped tool.
type Driver interface {
	// Name returns the name of the driver.
	Name() string

	// Args returns the arguments passed to the tool binary.
	Args() []string

	// Filter rewrites a record before it is delivered. It returns false if
	// the record should be dropped.
	Filter(rec demux.Record) (demux.Record, bool)
}

// New returns the driver registered under name. A non-empty args overrides
// the driver's default arguments.
func New(name string, args []string) (Driver, error) {
	switch name {
	case CjpmName, "":
		return NewCjpmDriver(args), nil
	case GenericName:
		return NewGenericDriver(args), nil
	default:
		return nil, fmt.Errorf("unknown tool driver %q", name)
	}
}

func cloneArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	return out
}
