// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"

	"github.com/joeycumines/logiface"
)

// defaultBatchSize bounds per-pass kernel memory and latency jitter. It has
// no correctness impact.
const defaultBatchSize = 64

// reactorOptions holds configuration options for Reactor creation.
type reactorOptions struct {
	logger    *logiface.Logger[logiface.Event]
	batchSize int
}

// ReactorOption configures a Reactor instance.
type ReactorOption interface {
	applyReactor(*reactorOptions) error
}

// reactorOptionImpl implements ReactorOption.
type reactorOptionImpl struct {
	applyReactorFunc func(*reactorOptions) error
}

func (o *reactorOptionImpl) applyReactor(opts *reactorOptions) error {
	return o.applyReactorFunc(opts)
}

// WithLogger sets the logger used for the reactor's diagnostic output.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithBatchSize sets the maximum number of readiness events consumed from
// the kernel per dispatch pass. The default is 64.
func WithBatchSize(size int) ReactorOption {
	return &reactorOptionImpl{func(opts *reactorOptions) error {
		if size <= 0 {
			return errors.New("reactor: batch size must be positive")
		}
		opts.batchSize = size
		return nil
	}}
}

// resolveReactorOptions applies ReactorOption instances to reactorOptions.
func resolveReactorOptions(opts []ReactorOption) (*reactorOptions, error) {
	cfg := &reactorOptions{
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyReactor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
