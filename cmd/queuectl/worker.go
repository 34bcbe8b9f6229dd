package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/logger"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
	"github.com/maumercado/queuectl/internal/supervisor"
	"github.com/maumercado/queuectl/internal/worker"
)

func runWorker(args []string) int {
	if len(args) == 0 {
		fmt.Println("usage: queuectl worker <start|stop|run> ...")
		return exitUsage
	}

	switch args[0] {
	case "start":
		return runWorkerStart(args[1:])
	case "stop":
		return runWorkerStop(args[1:])
	case "run":
		return runWorkerRun(args[1:])
	default:
		fmt.Printf("queuectl worker: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

func runWorkerStart(args []string) int {
	fs := flag.NewFlagSet("worker start", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	count := fs.Int("count", 1, "number of worker processes to spawn")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *count < 1 {
		fmt.Println("--count must be >= 1")
		return exitUsage
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}

	sup := supervisor.New(path)
	ids, err := sup.Start(*count)
	if err != nil {
		return fail(err)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	return exitOK
}

func runWorkerStop(args []string) int {
	fs := flag.NewFlagSet("worker stop", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}

	pids, err := supervisor.ReadSidecar(path)
	if err != nil {
		return fail(err)
	}
	if len(pids) == 0 {
		fmt.Println("no workers recorded in the sidecar")
		return exitOK
	}

	supervisor.StopPIDs(background(), pids)
	if err := os.Remove(filepath.Join(filepath.Dir(path), "workers.pid")); err != nil && !os.IsNotExist(err) {
		return fail(err)
	}
	fmt.Printf("stopped %d worker(s)\n", len(pids))
	return exitOK
}

func runWorkerRun(args []string) int {
	fs := flag.NewFlagSet("worker run", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	id := fs.String("id", "", "worker id (default: worker-<pid>)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}

	st, err := store.Open(path)
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	level, err := st.GetConfig(background(), store.ConfigLogLevel)
	if err != nil {
		level = "info"
	}
	logger.Init(level, os.Getenv("ENV") != "production")

	workerID := *id
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%d", os.Getpid())
	}

	mgr := queue.New(st, events.NewBus())
	loop := worker.New(workerID, st, mgr)

	// runCtx is NOT canceled by the first shutdown signal: it flows all
	// the way down into the launcher's exec.CommandContext, and canceling
	// it would kill an in-flight job command instead of letting it finish.
	// The first signal instead calls loop.Stop(), which drains (finishes
	// the current job, reports its outcome, then exits the poll loop). A
	// second signal escalates to canceling runCtx for a hard stop.
	runCtx, cancelRun := context.WithCancel(background())
	defer cancelRun()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig, ok := <-sigCh
		if !ok {
			return
		}
		logger.Get().Info().Str("signal", sig.String()).Msg("draining worker loop")
		loop.Stop()

		select {
		case <-sigCh:
			logger.Get().Warn().Msg("second shutdown signal received, forcing worker loop to stop")
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	logger.Get().Info().Str("worker_id", workerID).Msg("starting worker loop")

	if err := loop.Run(runCtx); err != nil {
		logger.Get().Error().Err(err).Msg("worker loop exited with error")
		return exitFailure
	}
	return exitOK
}
