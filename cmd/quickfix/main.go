package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/aussiebroadwan/quickfix/internal/cli"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
)

func main() {
	server := flag.String("server", envOr("QUICKFIX_SERVER", "http://localhost:8080"), "auth service base URL")
	sessionFile := flag.String("session", "", "session file (default <config dir>/quickfix/session.json)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path := *sessionFile
	if path == "" {
		var err error
		if path, err = authsdk.DefaultSessionPath(); err != nil {
			fail(err)
		}
	}

	session := authsdk.NewSessionContext(&authsdk.FileSessionStore{Path: path})
	if err := session.Init(ctx); err != nil {
		fail(err)
	}

	app := &cli.App{
		Client:  authsdk.NewSDKClient(*server),
		Session: session,
		In:      bufio.NewReader(os.Stdin),
		Out:     os.Stdout,
	}
	if err := app.Run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, cli.Describe(err, *server))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "quickfix:", err)
	os.Exit(1)
}
