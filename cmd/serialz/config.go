package main

import (
	"context"
	"log"

	"github.com/zoobzio/serialz"
)

// loadConfig reads --config, or returns the plain defaults when it is unset.
func loadConfig() (serialz.Config, error) {
	if configPath == "" {
		return serialz.Config{}, nil
	}
	return serialz.LoadConfig(configPath)
}

// buildOrchestrator creates the orchestrator and attaches failure logging.
func buildOrchestrator(cfg serialz.Config) (*serialz.Orchestrator, error) {
	o, err := serialz.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := o.OnFailed(func(_ context.Context, e serialz.Event) error {
		log.Printf("%s %s: %d of %d items failed after %v: %v", e.Method, e.Path, e.Failed, e.ItemCount, e.Duration, e.Error)
		return nil
	}); err != nil {
		_ = o.Close() //nolint:errcheck
		return nil, err
	}
	return o, nil
}
