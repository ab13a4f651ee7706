package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/yaklabco/fwstat/cmd/fwstat"
	"github.com/yaklabco/fwstat/pkg/st"
)

func main() {
	os.Exit(actualMain())
}

func actualMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := fwstat.NewRootCmd(ctx)

	// fang reports the error; only the exit status is left to set.
	if err := fwstat.ExecuteWithFang(ctx, rootCmd); err != nil {
		return st.ExitStatus(err)
	}

	return 0
}
