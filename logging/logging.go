// Package logging constructs the zap loggers threaded through the engine.
package logging

import "go.uber.org/zap"

// New builds a production logger when dev is false, otherwise a
// development logger (colored level, caller, no sampling) suited to tests.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewNop returns a logger that discards everything, for tests that don't
// care about log output.
func NewNop() *zap.Logger { return zap.NewNop() }

// Named returns a child logger scoped to component, with a fixed field.
func Named(base *zap.Logger, component string) *zap.Logger {
	return base.Named(component)
}
