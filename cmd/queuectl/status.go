package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
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

	status, err := mgr.Status(background())
	if err != nil {
		return fail(err)
	}

	if *asJSON {
		return printJSON(status)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "pending\t%d\n", status.Pending)
	fmt.Fprintf(w, "processing\t%d\n", status.Processing)
	fmt.Fprintf(w, "completed\t%d\n", status.Completed)
	fmt.Fprintf(w, "dlq\t%d\n", status.DLQ)
	fmt.Fprintf(w, "workers\t%d\n", status.Workers)
	w.Flush()
	return exitOK
}
