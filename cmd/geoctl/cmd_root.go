package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/geoloc/internal/core/domain"
	grpcclient "github.com/lcalzada-xor/geoloc/internal/core/services/grpc"
)

type rootOptions struct {
	server  string
	timeout time.Duration
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	root := &cobra.Command{
		Use:   "geoctl",
		Short: "Query and control a geolocd daemon",
		Long: `
geoctl talks to geolocd over gRPC. It can read the current position, stream
watch updates, change the platform configuration and manage authorization.
`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&opts.server, "server", "s", "localhost:9000", "geolocd gRPC address")
	root.PersistentFlags().DurationVar(&opts.timeout, "rpc-timeout", 30*time.Second, "deadline for unary calls")

	root.AddCommand(
		newCurrentCmd(opts),
		newWatchCmd(opts),
		newConfigureCmd(opts),
		newAuthorizeCmd(opts),
		newStopCmd(opts),
	)
	return root
}

// unary dials the server and runs fn under the RPC deadline.
func (o *rootOptions) unary(parent context.Context, fn func(context.Context, *grpcclient.Client) error) error {
	client, err := grpcclient.NewClient(o.server)
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.server, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()
	return fn(ctx, client)
}

func (o *rootOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optionFlags binds the shared request option flags. Unset flags are left
// nil so the daemon applies its defaults.
type optionFlags struct {
	timeout        int64
	maximumAge     int64
	highAccuracy   bool
	distanceFilter float64
	significant    bool
}

func (f *optionFlags) bind(cmd *cobra.Command, watch bool) {
	cmd.Flags().Int64Var(&f.timeout, "timeout", 0, "milliseconds to wait for a fix (default: forever)")
	cmd.Flags().Int64Var(&f.maximumAge, "maximum-age", 0, "oldest acceptable cached fix in milliseconds (default: any)")
	cmd.Flags().BoolVar(&f.highAccuracy, "high-accuracy", false, "request the most accurate fix available")
	if watch {
		cmd.Flags().Float64Var(&f.distanceFilter, "distance-filter", 0, "minimum meters between updates (default 100)")
		cmd.Flags().BoolVar(&f.significant, "significant-changes", false, "only report significant location changes")
	}
}

func (f *optionFlags) document(cmd *cobra.Command) domain.OptionsDocument {
	doc := domain.OptionsDocument{
		EnableHighAccuracy:    f.highAccuracy,
		UseSignificantChanges: f.significant,
	}
	if cmd.Flags().Changed("timeout") {
		doc.Timeout = &f.timeout
	}
	if cmd.Flags().Changed("maximum-age") {
		doc.MaximumAge = &f.maximumAge
	}
	if cmd.Flags().Changed("distance-filter") {
		doc.DistanceFilter = &f.distanceFilter
	}
	return doc
}
