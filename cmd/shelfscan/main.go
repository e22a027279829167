package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"shelfscan/internal/api"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			var apiErr *api.Error
			if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Hint) != "" {
				fmt.Fprintf(os.Stderr, "hint: %s\n", apiErr.Hint)
			}
		}
		os.Exit(1)
	}
}
