package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobwatch/internal/cli/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	err := cmd.Execute(ctx)
	if err == nil {
		return cmd.ExitOK
	}
	var ee *cmd.ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(os.Stderr, "jobwatch:", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintln(os.Stderr, "jobwatch:", err)
	return cmd.ExitCLIError
}
