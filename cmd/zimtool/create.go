package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/zim"
	"github.com/meigma/zim/internal/manifest"
)

type createOptions struct {
	manifest    string
	dir         string
	namespace   string
	compression string
	sorted      bool
	mainPage    string
}

func (a *app) createCmd() *cobra.Command {
	var opts createOptions
	cmd := &cobra.Command{
		Use:   "create OUT",
		Short: "Build an archive from a manifest or a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := opts.load()
			if err != nil {
				return err
			}
			wopts := m.WriterOptions()
			if cmd.Flags().Changed("compression") {
				c, err := parseCompression(opts.compression)
				if err != nil {
					return err
				}
				wopts = append(wopts, zim.WithCompression(c))
			}
			if cmd.Flags().Changed("sorted") {
				wopts = append(wopts, zim.WithSortedDirectory(opts.sorted))
			}
			wopts = append(wopts, zim.WithWriterLogger(a.logger))

			size, err := a.create(cmd, args[0], m, opts.mainPage, wopts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", args[0], humanize.IBytes(uint64(max(size, 0))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "YAML build manifest")
	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "directory whose files become articles")
	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "C", "namespace for files imported with --dir")
	cmd.Flags().StringVarP(&opts.compression, "compression", "c", "zlib", "cluster compression: none or zlib")
	cmd.Flags().BoolVar(&opts.sorted, "sorted", false, "store the directory in (namespace, url) order")
	cmd.Flags().StringVar(&opts.mainPage, "main", "", "main page as NS/URL")
	cmd.MarkFlagsMutuallyExclusive("manifest", "dir")
	cmd.MarkFlagsOneRequired("manifest", "dir")
	return cmd
}

func (o *createOptions) load() (*manifest.Manifest, error) {
	if o.manifest != "" {
		return manifest.Load(o.manifest)
	}
	return manifest.ForDir(o.dir, o.namespace)
}

func parseCompression(s string) (zim.Compression, error) {
	switch s {
	case "none":
		return zim.CompressionNone, nil
	case "zlib":
		return zim.CompressionZlib, nil
	default:
		return 0, fmt.Errorf("%w: compression %q", zim.ErrUnsupportedCompression, s)
	}
}

// create builds the archive in a temporary file next to out and renames it
// into place, so a failed build never leaves a partial archive at out.
func (a *app) create(cmd *cobra.Command, out string, m *manifest.Manifest, mainPage string, opts []zim.WriterOption) (size int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".zimtool-*")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, os.Remove(tmp.Name()))
		}
	}()

	w, err := zim.NewWriter(tmp, opts...)
	if err != nil {
		return 0, errors.Join(err, tmp.Close())
	}
	if err := m.Apply(cmd.Context(), w); err != nil {
		return 0, errors.Join(err, tmp.Close())
	}
	if mainPage != "" {
		ns, url, err := manifest.ParsePath(mainPage)
		if err != nil {
			return 0, errors.Join(err, tmp.Close())
		}
		if err := w.SetMainPageByPath(ns, url); err != nil {
			return 0, errors.Join(fmt.Errorf("--main: %w", err), tmp.Close())
		}
	}
	if err := w.Finalize(); err != nil {
		return 0, errors.Join(err, tmp.Close())
	}
	a.logger.Debug("archive built", "entries", w.Len())

	if err := tmp.Chmod(0o644); err != nil {
		return 0, errors.Join(err, tmp.Close())
	}
	st, err := tmp.Stat()
	if err != nil {
		return 0, errors.Join(err, tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return 0, err
	}
	return st.Size(), nil
}
