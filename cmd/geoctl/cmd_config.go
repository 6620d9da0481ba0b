package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	grpcclient "github.com/lcalzada-xor/geoloc/internal/core/services/grpc"
)

func newConfigureCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Replace the daemon's platform configuration",
	}

	var (
		mode     string
		fastest  time.Duration
		interval time.Duration
	)
	android := &cobra.Command{
		Use:   "android",
		Short: "Configure the Android fused location provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return applyConfig(cmd.Context(), opts, domain.ConfigDocument{
				Platform:        domain.PlatformAndroid,
				LowAccuracyMode: mode,
				FastestInterval: fastest.Milliseconds(),
				UpdateInterval:  interval.Milliseconds(),
			})
		},
	}
	android.Flags().StringVar(&mode, "low-accuracy-mode", "", "BALANCED, LOW_POWER or NO_POWER")
	android.Flags().DurationVar(&fastest, "fastest-interval", 0, "fastest update interval (default 10s)")
	android.Flags().DurationVar(&interval, "update-interval", 0, "update interval (default 5s)")

	var skip bool
	ios := &cobra.Command{
		Use:   "ios",
		Short: "Configure CoreLocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return applyConfig(cmd.Context(), opts, domain.ConfigDocument{
				Platform:               domain.PlatformIOS,
				SkipPermissionRequests: skip,
			})
		},
	}
	ios.Flags().BoolVar(&skip, "skip-permission-requests", false, "never prompt for authorization")

	cmd.AddCommand(android, ios)
	return cmd
}

func applyConfig(parent context.Context, opts *rootOptions, doc domain.ConfigDocument) error {
	return opts.unary(parent, func(ctx context.Context, c *grpcclient.Client) error {
		out, err := c.SetConfiguration(ctx, doc)
		if err != nil {
			return err
		}
		return opts.printJSON(out)
	})
}

func newAuthorizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Ask the daemon to request location authorization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.unary(cmd.Context(), func(ctx context.Context, c *grpcclient.Client) error {
				status, err := c.RequestAuthorization(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(opts.out, status)
				return nil
			})
		},
	}
}
