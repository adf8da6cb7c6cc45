package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/zim"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print the header, counts and metadata of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			r, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return writeInfo(cmd.OutOrStdout(), args[0], st.Size(), r)
		},
	}
}

func writeInfo(out io.Writer, path string, size int64, r *zim.Reader) error {
	h := r.Header()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "File:\t%s\n", path)
	fmt.Fprintf(tw, "Size:\t%s\n", humanize.IBytes(uint64(max(size, 0))))
	fmt.Fprintf(tw, "Version:\t%d.%d\n", h.MajorVersion, h.MinorVersion)
	fmt.Fprintf(tw, "Entries:\t%s\n", humanize.Comma(int64(h.EntryCount)))
	fmt.Fprintf(tw, "Articles:\t%s\n", humanize.Comma(int64(h.ArticleCount)))
	fmt.Fprintf(tw, "Redirects:\t%s\n", humanize.Comma(int64(h.RedirectCount)))
	fmt.Fprintf(tw, "Clusters:\t%s\n", humanize.Comma(int64(h.ClusterCount)))

	mainPage := "(none)"
	if e, err := r.MainPage(); err == nil {
		mainPage = e.Path()
	}
	fmt.Fprintf(tw, "Main page:\t%s\n", mainPage)

	for i, m := range r.MimeTypes() {
		label := ""
		if i == 0 {
			label = "Mime types:"
		}
		fmt.Fprintf(tw, "%s\t%d  %s\n", label, i, m)
	}

	counts := r.NamespaceCounts()
	for i, ns := range slices.Sorted(maps.Keys(counts)) {
		label := ""
		if i == 0 {
			label = "Namespaces:"
		}
		fmt.Fprintf(tw, "%s\t%s  %d\n", label, ns, counts[ns])
	}

	first := true
	for e := range r.EntriesWithPrefix(zim.NamespaceMetadata, "") {
		value, err := r.Metadata(e.URL)
		if err != nil {
			continue
		}
		label := ""
		if first {
			label = "Metadata:"
			first = false
		}
		fmt.Fprintf(tw, "%s\t%s  %s\n", label, e.URL, value)
	}
	return tw.Flush()
}
