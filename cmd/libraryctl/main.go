// Command libraryctl runs operator tasks against the library database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/booktrack/library-service/library/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
