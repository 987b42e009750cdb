// authctl drives the authflow API from a terminal.
//
//	authctl [-url http://localhost:8080] <command> [flags]
//
// Commands: signup, resend, verify, login, me, promote, providers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "authctl:", err)
		stop()
		os.Exit(1)
	}
}
