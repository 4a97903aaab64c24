package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolink/folio/config"
	"github.com/toolink/folio/limiter"
)

func newRateLimitCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect the configured rate limiters",
	}
	cmd.AddCommand(newRateLimitCheckCmd(opts), newRateLimitClearCmd(opts))
	return cmd
}

func newRateLimitCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		category string
		count    int
	)
	cmd := &cobra.Command{
		Use:   "check <identifier>",
		Short: "Count requests for an identifier and print each decision",
		Long: `Count requests for an identifier and print each decision.

With the memory storage type the counters live only for this command, which
makes it useful for trying out policies. With redis storage the check counts
against the same quota as the running servers.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			set, closeFn, err := buildLimiters(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			l, err := set.Get(category)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				res, err := l.Check(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), i+1, res)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", limiter.CategoryGeneral, "limiter category (contact, github, chatbot, general)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of requests to count")
	return cmd
}

func newRateLimitClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every stored rate-limit counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			set, closeFn, err := buildLimiters(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := set.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d limiters (%s storage)\n", len(set.Categories()), cfg.RateLimit.StorageType)
			return nil
		},
	}
}

func buildLimiters(cfg *config.Config) (*limiter.Set, func(), error) {
	if !cfg.UsesRedis() {
		set, err := limiter.NewSet(&cfg.RateLimit, nil)
		return set, func() {}, err
	}
	client := newRedisClient(cfg.Redis)
	set, err := limiter.NewSet(&cfg.RateLimit, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return set, func() { _ = client.Close() }, nil
}

func printResult(w io.Writer, n int, res limiter.Result) {
	verdict := "allowed"
	if !res.Allowed {
		verdict = "rejected"
	}
	fmt.Fprintf(w, "#%d %s remaining=%d/%d reset=%s\n", n, verdict, res.Remaining, res.Limit, res.ResetAt.UTC().Format(time.RFC3339))
}
