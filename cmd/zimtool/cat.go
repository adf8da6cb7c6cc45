package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/zim/internal/manifest"
)

func (a *app) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE NS/URL",
		Short: "Write the content of an entry to stdout, following redirects",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, url, err := manifest.ParsePath(args[1])
			if err != nil {
				return err
			}
			r, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			data, err := r.ContentByPath(ns, url)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
