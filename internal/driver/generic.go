package driver

import "github.com/danghica/cliver/internal/demux"

// GenericName is the name of the passthrough driver.
const GenericName = "generic"

// GenericDriver runs the tool with the configured arguments and forwards
// every record unchanged.
type GenericDriver struct {
	args []string
}

// NewGenericDriver creates a passthrough driver.
func NewGenericDriver(args []string) *GenericDriver {
	return &GenericDriver{args: cloneArgs(args)}
}

// Name returns the name of the driver.
func (d *GenericDriver) Name() string {
	return GenericName
}

// Args returns the configured arguments.
func (d *GenericDriver) Args() []string {
	return cloneArgs(d.args)
}

// Filter returns rec unchanged.
func (d *GenericDriver) Filter(rec demux.Record) (demux.Record, bool) {
	return rec, true
}
