// Command queuectl is the CLI front-end for the job queue: it submits
// and inspects jobs, manages the worker pool, and serves the optional
// admin HTTP/WebSocket surface. It dispatches subcommands by hand on
// os.Args[1], the standard flag package per subcommand, no framework.
package main

import (
	"fmt"
	"os"
)

// Exit codes, normative across every subcommand.
const (
	exitOK           = 0
	exitFailure      = 1
	exitUsage        = 2
	exitNotFound     = 3
	exitDuplicate    = 4
	exitInvalidState = 5
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	var code int
	switch os.Args[1] {
	case "enqueue":
		code = runEnqueue(os.Args[2:])
	case "list":
		code = runList(os.Args[2:])
	case "status":
		code = runStatus(os.Args[2:])
	case "dlq":
		code = runDLQ(os.Args[2:])
	case "worker":
		code = runWorker(os.Args[2:])
	case "config":
		code = runConfig(os.Args[2:])
	case "admin":
		code = runAdmin(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		code = exitOK
	default:
		fmt.Fprintf(os.Stderr, "queuectl: unknown command %q\n", os.Args[1])
		usage()
		code = exitUsage
	}

	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, `queuectl — durable background job queue

Usage:
  queuectl enqueue <job-json> [--db path]
  queuectl list [--state S] [--limit N] [--db path] [--json]
  queuectl status [--db path] [--json]
  queuectl dlq list [--limit N] [--db path] [--json]
  queuectl dlq retry <id> [--db path]
  queuectl worker start --count N [--db path]
  queuectl worker stop [--db path]
  queuectl worker run --id ID [--db path]
  queuectl config get [key] [--db path]
  queuectl config set <key> <value> [--db path]
  queuectl config reset [key] [--db path]
  queuectl admin serve [--addr host:port] [--db path]
  queuectl admin token issue [--role name] [--db path]`)
}
