// railrelay relays rail-fence enciphered messages from clients to a
// server that deciphers and prints them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"railrelay/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "railrelay: %v\n", err)
		os.Exit(1)
	}
}
