package testutil

import (
	"time"

	"github.com/skosovsky/shipdesk"
)

// NewTestRegistry returns a Registry with long timeout and panic recovery enabled,
// suitable for tests. It panics on duplicate tool names.
func NewTestRegistry(tools ...shipdesk.Tool) *shipdesk.Registry {
	reg := shipdesk.NewRegistry(
		shipdesk.WithDefaultTimeout(30*time.Second),
		shipdesk.WithRecoverPanics(true),
	)
	reg.MustRegister(tools...)
	return reg
}
