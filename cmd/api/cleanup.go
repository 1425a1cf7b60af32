package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// cleanups releases resources in reverse order of acquisition. Steps are
// added as each resource is opened so every return path closes what exists.
type cleanups struct {
	log   *zap.Logger
	steps []cleanupStep
}

type cleanupStep struct {
	name string
	fn   func(context.Context) error
}

func (c *cleanups) add(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, cleanupStep{name: name, fn: fn})
}

// run executes the steps newest first under one shared deadline. Failures are
// logged and do not stop later steps.
func (c *cleanups) run(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.fn(ctx); err != nil {
			c.log.Error("shutdown step failed", zap.String("step", step.name), zap.Error(err))
		}
	}
	c.steps = nil
}
