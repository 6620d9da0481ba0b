package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	grpcclient "github.com/lcalzada-xor/geoloc/internal/core/services/grpc"
)

func newCurrentCmd(opts *rootOptions) *cobra.Command {
	var flags optionFlags
	cmd := &cobra.Command{
		Use:   "current",
		Short: "Print the current position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := flags.document(cmd)
			client, err := grpcclient.NewClient(opts.server)
			if err != nil {
				return fmt.Errorf("connect %s: %w", opts.server, err)
			}
			defer client.Close()

			// the acquisition timeout is enforced by the daemon
			pos, err := client.CurrentPosition(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return opts.printJSON(pos)
		},
	}
	flags.bind(cmd, false)
	return cmd
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var flags optionFlags
	var count int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream position updates until interrupted",
		Long: `
Registers a watch on the daemon and prints one JSON line per event. The watch
is cleared when geoctl exits.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := flags.document(cmd)
			client, err := grpcclient.NewClient(opts.server)
			if err != nil {
				return fmt.Errorf("connect %s: %w", opts.server, err)
			}
			defer client.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			seen := 0
			return client.Watch(ctx, doc, func(ev grpcclient.WatchEvent) error {
				switch ev.Type {
				case "position":
					seen++
					if err := opts.printJSON(map[string]any{"watchId": ev.WatchID, "position": ev.Position}); err != nil {
						return err
					}
				case "error":
					seen++
					if err := opts.printJSON(map[string]any{"watchId": ev.WatchID, "error": ev.Err}); err != nil {
						return err
					}
				default:
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ev.Type, ev.WatchID)
				}
				if count > 0 && seen >= count {
					cancel()
				}
				return nil
			})
		},
	}
	flags.bind(cmd, true)
	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after this many events (0 streams forever)")
	return cmd
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Clear every watch and pending request on the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.unary(cmd.Context(), func(ctx context.Context, c *grpcclient.Client) error {
				if err := c.StopObserving(ctx); err != nil {
					return err
				}
				fmt.Fprintln(opts.out, "stopped")
				return nil
			})
		},
	}
}
