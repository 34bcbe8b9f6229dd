package main

import (
	"flag"
	"fmt"
)

func runDLQ(args []string) int {
	if len(args) == 0 {
		fmt.Println("usage: queuectl dlq <list|retry> ...")
		return exitUsage
	}

	switch args[0] {
	case "list":
		return runDLQList(args[1:])
	case "retry":
		return runDLQRetry(args[1:])
	default:
		fmt.Printf("queuectl dlq: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

func runDLQList(args []string) int {
	fs := flag.NewFlagSet("dlq list", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	limit := fs.Int("limit", 100, "maximum rows to return")
	asJSON := fs.Bool("json", false, "print machine-readable JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}
	st, mgr, err := openManager(path)
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	jobs, err := mgr.ListDLQ(background(), *limit)
	if err != nil {
		return fail(err)
	}

	if *asJSON {
		return printJSON(jobs)
	}
	printJobTable(jobs)
	return exitOK
}

func runDLQRetry(args []string) int {
	fs := flag.NewFlagSet("dlq retry", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Println("usage: queuectl dlq retry <id>")
		return exitUsage
	}

	path, err := resolveDBPath(*dbPath)
	if err != nil {
		return fail(err)
	}
	st, mgr, err := openManager(path)
	if err != nil {
		return fail(err)
	}
	defer st.Close()

	if err := mgr.RetryFromDLQ(background(), fs.Arg(0)); err != nil {
		return fail(err)
	}

	fmt.Printf("requeued %s\n", fs.Arg(0))
	return exitOK
}
