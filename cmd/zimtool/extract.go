package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/zim"
)

func (a *app) extractCmd() *cobra.Command {
	var (
		workers    int
		overwrite  bool
		namespaces []string
	)
	cmd := &cobra.Command{
		Use:   "extract FILE DIR",
		Short: "Write every article to DIR/<namespace>/<url>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseNamespaces(namespaces)
			if err != nil {
				return err
			}
			r, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			opts := []zim.ExtractOption{
				zim.ExtractWithWorkers(workers),
				zim.ExtractWithOverwrite(overwrite),
			}
			if len(filter) > 0 {
				opts = append(opts, zim.ExtractWithNamespaces(filter...))
			}
			stats, err := r.Extract(cmd.Context(), args[1], opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "extracted %d entries (%s), skipped %d\n",
				stats.Processed, humanize.IBytes(stats.TotalBytes), stats.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of clusters decoded in parallel (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace files that already exist")
	cmd.Flags().StringSliceVarP(&namespaces, "namespace", "n", nil, "only extract these namespaces")
	return cmd
}
