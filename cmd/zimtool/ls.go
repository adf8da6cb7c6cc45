package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	digest "github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/meigma/zim"
)

type lsOptions struct {
	namespace string
	redirects bool
	digest    bool
}

func (a *app) lsCmd() *cobra.Command {
	var opts lsOptions
	cmd := &cobra.Command{
		Use:   "ls FILE",
		Short: "List the entries of an archive in directory order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return list(cmd.OutOrStdout(), r, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "only list entries in this namespace")
	cmd.Flags().BoolVar(&opts.redirects, "redirects", false, "include redirect entries")
	cmd.Flags().BoolVar(&opts.digest, "digest", false, "print the sha256 digest of each article")
	return cmd
}

func list(out io.Writer, r *zim.Reader, opts lsOptions) error {
	var filter []zim.Namespace
	if opts.namespace != "" {
		ns, err := parseNamespaces([]string{opts.namespace})
		if err != nil {
			return err
		}
		filter = ns
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for e := range r.Entries() {
		if len(filter) > 0 && e.Namespace != filter[0] {
			continue
		}
		if e.IsRedirect() {
			if !opts.redirects {
				continue
			}
			target, err := r.EntryAt(int(e.RedirectIndex))
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t->\t%s\n", e.Path(), target.Path())
			continue
		}

		data, err := r.Content(e)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Path(), err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s", e.Path(), r.MimeType(e), humanize.IBytes(uint64(len(data))))
		if opts.digest {
			fmt.Fprintf(tw, "\t%s", digest.FromBytes(data))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
