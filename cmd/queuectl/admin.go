package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	adminsrv "github.com/maumercado/queuectl/internal/admin"
	adminmw "github.com/maumercado/queuectl/internal/admin/middleware"
	"github.com/maumercado/queuectl/internal/events"
	"github.com/maumercado/queuectl/internal/logger"
	"github.com/maumercado/queuectl/internal/queue"
	"github.com/maumercado/queuectl/internal/store"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		fmt.Println("usage: queuectl admin <serve|token> ...")
		return exitUsage
	}

	switch args[0] {
	case "serve":
		return runAdminServe(args[1:])
	case "token":
		return runAdminToken(args[1:])
	default:
		fmt.Printf("queuectl admin: unknown subcommand %q\n", args[0])
		return exitUsage
	}
}

func runAdminServe(args []string) int {
	fs := flag.NewFlagSet("admin serve", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	addrFlag := fs.String("addr", "", "listen address (overrides admin_addr config)")
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
	log := logger.Get()

	addr := *addrFlag
	if addr == "" {
		addr, err = st.GetConfig(background(), store.ConfigAdminAddr)
		if err != nil {
			addr = "127.0.0.1:7850"
		}
	}

	jwtSecret, err := st.GetConfig(background(), store.ConfigAdminJWTSecret)
	if err != nil {
		return fail(err)
	}
	rpsRaw, err := st.GetConfig(background(), store.ConfigAdminRateLimitRPS)
	rps := 50
	if err == nil {
		if n, convErr := strconv.Atoi(rpsRaw); convErr == nil {
			rps = n
		}
	}

	bus := events.NewBus()
	mgr := queue.New(st, bus)
	srv := adminsrv.NewServer(mgr, bus, adminsrv.Options{JWTSecret: jwtSecret, RateLimitRPS: rps})

	runCtx, cancel := signal.NotifyContext(background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv.Start(runCtx)
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Str("addr", addr).Msg("admin server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server error")
		}
	}()

	<-runCtx.Done()
	log.Info().Msg("shutting down admin server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown error")
	}

	return exitOK
}

func runAdminToken(args []string) int {
	if len(args) == 0 || args[0] != "issue" {
		fmt.Println("usage: queuectl admin token issue [--role name] [--ttl duration]")
		return exitUsage
	}

	fs := flag.NewFlagSet("admin token issue", flag.ContinueOnError)
	dbPath := fs.String("db", "", "path to the queuectl database")
	role := fs.String("role", "operator", "subject recorded in the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args[1:]); err != nil {
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

	secret, err := st.GetConfig(background(), store.ConfigAdminJWTSecret)
	if err != nil {
		return fail(err)
	}

	token, err := adminmw.IssueToken(secret, *role, jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
	})
	if err != nil {
		return fail(err)
	}

	fmt.Println(token)
	return exitOK
}
