package main

import (
	"flag"
	"fmt"
	"sort"

	"github.com/maumercado/queuectl/internal/store"
)

var allConfigKeys = []store.ConfigKey{
	store.ConfigMaxRetries,
	store.ConfigBackoffBase,
	store.ConfigBackoffMaxDelay,
	store.ConfigWorkerPollInterval,
	store.ConfigWorkerHeartbeatInterval,
	store.ConfigJobTimeout,
	store.ConfigLogLevel,
	store.ConfigAdminEnabled,
	store.ConfigAdminAddr,
	store.ConfigAdminRateLimitRPS,
}

func runConfig(args []string) int {
	if len(args) == 0 {
		fmt.Println("usage: queuectl config <get|set|reset> ...")
		return exitUsage
	}

	switch args[0] {
	case "get":
		return runConfigGet(args[1:])
	case "set":
		return runConfigSet(args[1:])
	case "reset":
		return runConfigReset(args[1:])
	default:
		fmt.Printf("queuectl config: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

func runConfigGet(args []string) int {
	fs := flag.NewFlagSet("config get", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
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

	if fs.NArg() == 1 {
		value, err := st.GetConfig(background(), store.ConfigKey(fs.Arg(0)))
		if err != nil {
			return fail(err)
		}
		fmt.Println(value)
		return exitOK
	}

	all, err := st.AllConfig(background())
	if err != nil {
		return fail(err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, all[store.ConfigKey(k)])
	}
	return exitOK
}

func runConfigSet(args []string) int {
	fs := flag.NewFlagSet("config set", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 2 {
		fmt.Println("usage: queuectl config set <key> <value>")
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

	if err := st.SetConfig(background(), store.ConfigKey(fs.Arg(0)), fs.Arg(1)); err != nil {
		return fail(err)
	}

	fmt.Printf("%s=%s\n", fs.Arg(0), fs.Arg(1))
	return exitOK
}

func runConfigReset(args []string) int {
	fs := flag.NewFlagSet("config reset", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
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

	if fs.NArg() == 1 {
		if err := st.ResetConfig(background(), store.ConfigKey(fs.Arg(0))); err != nil {
			return fail(err)
		}
		fmt.Printf("reset %s to default\n", fs.Arg(0))
		return exitOK
	}

	for _, key := range allConfigKeys {
		if err := st.ResetConfig(background(), key); err != nil {
			return fail(err)
		}
	}
	fmt.Println("reset all config keys to defaults")
	return exitOK
}
