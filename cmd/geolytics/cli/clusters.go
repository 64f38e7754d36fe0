package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newClustersCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Scan the configured hosts and list discovered databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			var logOut io.Writer = io.Discard
			if verbose {
				logOut = os.Stderr
			}
			logger := slog.New(slog.NewTextHandler(logOut, nil))

			registry, err := buildRegistry(logger)
			if err != nil {
				return err
			}
			defer registry.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			registry.Refresh(ctx)

			names := registry.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no databases discovered")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d databases discovered\n", len(names))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log per-host scan progress")

	return cmd
}
