package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigma/zim"
	"github.com/meigma/zim/internal/manifest"
)

type app struct {
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:          "zimtool [command]",
		Short:        "Inspect, extract and build ZIM archives",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.infoCmd(),
		a.lsCmd(),
		a.catCmd(),
		a.extractCmd(),
		a.createCmd(),
	)
	return root
}

func (a *app) open(path string) (*zim.Reader, error) {
	r, err := zim.Open(path, zim.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

// parseNamespaces converts single-character flag values into namespaces.
func parseNamespaces(values []string) ([]zim.Namespace, error) {
	out := make([]zim.Namespace, 0, len(values))
	for _, v := range values {
		ns, err := manifest.ParseNamespace(v)
		if err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, nil
}
