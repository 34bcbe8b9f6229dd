package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/maumercado/queuectl/internal/job"
)

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	state := fs.String("state", "", "filter by state (pending, processing, completed, dlq)")
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

	jobs, err := mgr.List(background(), job.State(*state), *limit)
	if err != nil {
		return fail(err)
	}

	if *asJSON {
		return printJSON(jobs)
	}
	printJobTable(jobs)
	return exitOK
}

func printJSON(v interface{}) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	return exitOK
}

func printJobTable(jobs []*job.Job) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tMAX_RETRIES\tWORKER\tNEXT_RUN_AT")
	for _, j := range jobs {
		worker := j.WorkerID
		if worker == "" {
			worker = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries, worker, j.NextRunAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	w.Flush()
}
