// h5tdump prints the groups, tables, columns and header attributes of a
// table file.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5table/config"
	"github.com/robert-malhotra/go-h5table/internal/logging"
	"github.com/robert-malhotra/go-h5table/tablefile"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts dumpOptions
	var configFile, logLevel string

	root := &cobra.Command{
		Use:   "h5tdump <file>",
		Short: "Show the structure and contents of a table file",
		Long: `h5tdump lists every group and table of a table file with column types,
compression filters and, optionally, header attributes and the first rows.

Example:
  h5tdump --attrs --rows 5 --format yaml events.h5t`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFile(args[0], configFile, logLevel, func(f *tablefile.File) error {
				r, err := report(f, opts)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), r, opts.format)
			})
		},
	}
	root.Flags().StringVarP(&opts.format, "format", "f", formatText, "Output format (text, json, yaml)")
	root.Flags().IntVarP(&opts.rows, "rows", "n", 0, "Number of rows to print per table")
	root.Flags().BoolVarP(&opts.attrs, "attrs", "a", false, "Print header attributes")
	root.Flags().StringVarP(&opts.path, "path", "p", "/", "Only show this group or table")
	root.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (YAML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "stats <file>",
		Short: "Show file identity, size and row counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFile(args[0], configFile, logLevel, func(f *tablefile.File) error {
				return writeStats(cmd.OutOrStdout(), f)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "attrs <file>",
		Short: "List every header attribute with its full path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFile(args[0], configFile, logLevel, func(f *tablefile.File) error {
				out := cmd.OutOrStdout()
				return f.WalkAttrs(func(info tablefile.AttrInfo) error {
					if info.Err != nil {
						fmt.Fprintf(out, "%s <%v>\n", info.Path, info.Err)
						return nil
					}
					fmt.Fprintf(out, "%s = %v\n", info.Path, displayValue(info.Value))
					return nil
				})
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "h5tdump v%s\n", version)
		},
	})

	return root
}

// withFile opens path read-only with a logger built from the configuration
// file and the --log-level flag, and calls fn.
func withFile(path, configFile, logLevel string, fn func(*tablefile.File) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	f, err := tablefile.Open(path, tablefile.ModeRead, tablefile.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	logger.Debug("opened file", zap.String("path", path), zap.String("id", f.ID().String()))
	return fn(f)
}

func writeStats(w io.Writer, f *tablefile.File) error {
	var groups, tables, rows, chunks int
	err := tablefile.Walk(f.Root(), func(path string, n tablefile.Node) error {
		switch x := n.(type) {
		case *tablefile.Group:
			groups++
		case *tablefile.Table:
			tables++
			rows += x.Len()
			chunks += x.NumChunks()
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "path:    %s\n", f.Path())
	if f.IsHDF5() {
		fmt.Fprintf(w, "format:  hdf5 (read-only)\n")
	} else {
		fmt.Fprintf(w, "id:      %s\n", f.ID())
		fmt.Fprintf(w, "created: %s\n", f.Created().UTC().Format("2006-01-02T15:04:05Z"))
	}
	fmt.Fprintf(w, "size:    %d\n", f.Size())
	fmt.Fprintf(w, "groups:  %d\n", groups)
	fmt.Fprintf(w, "tables:  %d\n", tables)
	fmt.Fprintf(w, "rows:    %d\n", rows)
	fmt.Fprintf(w, "chunks:  %d\n", chunks)

	st := f.Stats()
	if st.TotalAllocations > 0 {
		fmt.Fprintf(w, "allocations: %d (%d bytes, largest %d)\n", st.TotalAllocations, st.TotalBytesAlloc, st.LargestAlloc)
		for _, t := range st.Tags() {
			fmt.Fprintf(w, "  %s: %d\n", t, st.BytesByTag[t])
		}
	}
	return nil
}
