// Command clipthat listens for spoken trigger phrases and presses the
// matching capture hotkeys.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/clipthat/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
