// Package store provides vector store driver selection options.
package store

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/aegis/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Supported vector store drivers.
const (
	DriverMilvus = "milvus"
	DriverMemory = "memory"
)

// Options selects the vector store backend.
type Options struct {
	// Driver is the vector store backend (milvus or memory).
	Driver string `json:"driver" mapstructure:"driver"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Driver: DriverMilvus,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Driver, options.Join(prefixes...)+"store.driver", o.Driver, "Vector store driver (milvus, memory).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	if o.Driver != DriverMilvus && o.Driver != DriverMemory {
		return []error{fmt.Errorf("unsupported store driver %q", o.Driver)}
	}
	return nil
}
