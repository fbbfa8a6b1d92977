package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleet/internal/service"
)

func newOptimizeCmd(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Dispatch every confirmed order expected on a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.ParseInLocation(time.DateOnly, date, time.Local)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				day = parsed
			}

			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			results, err := e.services.Dispatch.OptimizeDispatch(ctx, day)
			if err != nil {
				return err
			}

			dispatched := 0
			for _, r := range results {
				if r.Status == service.OptimizeDispatched {
					dispatched++
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"date":       day.Format(time.DateOnly),
				"total":      len(results),
				"dispatched": dispatched,
				"results":    results,
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to optimize, YYYY-MM-DD (default today)")
	return cmd
}
