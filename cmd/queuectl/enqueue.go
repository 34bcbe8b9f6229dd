package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"

	"github.com/maumercado/queuectl/internal/store"
)

// enqueuePayload is the job input schema: id and command are required,
// max_retries is optional, everything else becomes metadata verbatim.
type enqueuePayload struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries int    `json:"max_retries"`
}

func runEnqueue(args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Println("usage: queuectl enqueue <job-json>")
		return exitUsage
	}

	raw := fs.Arg(0)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return fail(fmt.Errorf("%w: invalid job json: %v", store.ErrValidation, err))
	}

	var payload enqueuePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fail(fmt.Errorf("%w: invalid job json: %v", store.ErrValidation, err))
	}
	if payload.ID == "" {
		return fail(fmt.Errorf("%w: \"id\" is required and must be non-empty", store.ErrValidation))
	}
	if payload.Command == "" {
		return fail(fmt.Errorf("%w: \"command\" is required and must be non-empty", store.ErrValidation))
	}
	if _, given := fields["max_retries"]; given && payload.MaxRetries < 1 {
		return fail(fmt.Errorf("%w: \"max_retries\" must be >= 1", store.ErrValidation))
	}

	metadata := make(map[string]string)
	for k, v := range fields {
		if k == "id" || k == "command" || k == "max_retries" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			metadata[k] = s
			continue
		}
		metadata[k] = string(v)
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

	maxRetries := payload.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
		if raw, err := st.GetConfig(background(), store.ConfigMaxRetries); err == nil {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				maxRetries = n
			}
		}
	}

	j, err := mgr.Enqueue(background(), payload.ID, payload.Command, maxRetries, metadata)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("enqueued %s\n", j.ID)
	return exitOK
}
