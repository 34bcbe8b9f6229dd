package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/maumercado/queuectl/internal/config"
	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
)

// resolveDBPath returns dbFlag if set, else the bootstrap-configured
// default (config file / env / built-in fallback).
func resolveDBPath(dbFlag string) (string, error) {
	if dbFlag != "" {
		return dbFlag, nil
	}
	boot, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return boot.DBPath, nil
}

// openManager opens the Store at dbPath and wraps it in a Queue Manager.
// Callers must close the returned Store when done.
func openManager(dbPath string) (*store.Store, *queue.Manager, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	mgr := queue.New(st, events.NewBus())
	return st, mgr, nil
}

// exitCodeFor maps a Store/Queue Manager error to its normative exit
// code, per the documented error-kind table.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, store.ErrDuplicateID):
		return exitDuplicate
	case errors.Is(err, store.ErrNotFound):
		return exitNotFound
	case errors.Is(err, store.ErrInvalidState):
		return exitInvalidState
	case errors.Is(err, store.ErrValidation):
		return exitUsage
	default:
		return exitFailure
	}
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "queuectl:", err)
	return exitCodeFor(err)
}

func background() context.Context {
	return context.Background()
}
