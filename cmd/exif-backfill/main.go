package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quidome/exif-backfill/pkg/backfill"
	"github.com/quidome/exif-backfill/pkg/exifcodec"
	"github.com/quidome/exif-backfill/pkg/filenamedate"
	"github.com/quidome/exif-backfill/pkg/logging"
	"github.com/quidome/exif-backfill/pkg/plan"
	"github.com/quidome/exif-backfill/pkg/scan"
	"github.com/quidome/exif-backfill/pkg/timestamp"
)

const version = "0.1.0"

type options struct {
	verbose   bool
	dryRun    bool
	logFormat string
}

func (o *options) logger(cmd *cobra.Command) (*zap.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), logging.Options{
		Format:  logging.Format(o.logFormat),
		Verbose: o.verbose,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "exif-backfill",
		Short:   "A CLI tool to fill in missing photo timestamps",
		Long:    "EXIF Backfill sets the capture timestamp fields of JPEG and PNG images that lack them, using existing metadata or the date encoded in the file name.",
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("EXIF Backfill CLI")
			cmd.Printf("Version: %s\n", version)
			if opts.verbose {
				cmd.Println("Verbose mode: enabled")
			}
			if opts.dryRun {
				cmd.Println("Dry run mode: enabled")
			}
			cmd.Println("")
			cmd.Println("Use --help to see available commands and options")
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "perform a dry run without making changes")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", string(logging.FormatConsole), "log format: console or json")

	rootCmd.AddCommand(newBackfillCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newParseNameCmd())
	rootCmd.AddCommand(newInspectCmd())

	return rootCmd
}

// scanFlags are shared by the commands that walk an input directory.
type scanFlags struct {
	maxDepth   int
	glob       string
	extensions []string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	defaults := scan.DefaultOptions()
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", -1, "maximum recursion depth (0 = no recursion)")
	cmd.Flags().StringVar(&f.glob, "glob", "", "match files against a glob pattern relative to the input instead of walking it")
	cmd.Flags().StringSliceVar(&f.extensions, "ext", defaults.Extensions, "file extensions to process (empty = all files)")
}

func (f *scanFlags) options() scan.Options {
	opts := scan.DefaultOptions()
	opts.MaxDepth = f.maxDepth
	opts.Extensions = f.extensions
	if f.glob != "" {
		opts.Mode = scan.ModeGlob
		opts.Pattern = f.glob
	}
	return opts
}

func newBackfillCmd(opts *options) *cobra.Command {
	var (
		sf             scanFlags
		layout         string
		inPlace        bool
		overwrite      bool
		copyUnresolved bool
		jobs           int
		verify         bool
	)

	backfillCmd := &cobra.Command{
		Use:   "backfill [input] [output]",
		Short: "Fill in missing timestamps",
		Long: "Resolve the capture timestamp of every image under input and write it to the timestamp fields that are absent. " +
			"Results go to output, or back to the inputs with --in-place.",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bfOpts := backfill.DefaultOptions()
			bfOpts.InputRoot = args[0]

			switch {
			case inPlace && len(args) == 2:
				return errors.New("output directory cannot be combined with --in-place")
			case inPlace:
				bfOpts.Layout = plan.LayoutInPlace
			case len(args) < 2:
				return errors.New("output directory is required unless --in-place is set")
			default:
				l, err := plan.ParseLayout(layout)
				if err != nil {
					return err
				}
				if l == plan.LayoutInPlace {
					return errors.New("use --in-place to rewrite the input files")
				}
				bfOpts.Layout = l
				bfOpts.OutputRoot = args[1]
			}

			logger, err := opts.logger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			bfOpts.Scan = sf.options()
			bfOpts.Overwrite = overwrite
			bfOpts.CopyUnresolved = copyUnresolved
			bfOpts.Jobs = jobs
			bfOpts.Verify = verify
			bfOpts.DryRun = opts.dryRun
			bfOpts.Logger = logger

			summary, err := backfill.Run(cmd.Context(), bfOpts)
			if err != nil {
				return err
			}

			printSummary(cmd, summary, opts.dryRun)
			return summary.Err()
		},
	}

	sf.register(backfillCmd)
	backfillCmd.Flags().StringVar(&layout, "layout", string(plan.LayoutTree), "output layout: tree or flat")
	backfillCmd.Flags().BoolVar(&inPlace, "in-place", false, "rewrite the input files instead of writing to an output directory")
	backfillCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing files in the output directory")
	backfillCmd.Flags().BoolVar(&copyUnresolved, "copy-unresolved", true, "copy images without a resolvable timestamp to the output unmodified")
	backfillCmd.Flags().IntVar(&jobs, "jobs", 1, "number of images processed concurrently")
	backfillCmd.Flags().BoolVar(&verify, "verify", false, "re-read every saved file and check its timestamps")

	return backfillCmd
}

func printSummary(cmd *cobra.Command, s backfill.Summary, dryRun bool) {
	for _, r := range s.Results {
		if r.Outcome == backfill.OK {
			continue
		}
		cmd.Printf("%s: %s: %v\n", r.Path, r.Outcome, r.Err)
	}

	parts := make([]string, 0, 5)
	for _, o := range []backfill.Outcome{
		backfill.OK,
		backfill.OpenFailure,
		backfill.ParseFailure,
		backfill.MalformedDate,
		backfill.SaveFailure,
	} {
		if n := s.Count(o); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", o, n))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}

	prefix := "processed"
	if dryRun {
		prefix = "dry run:"
	}
	cmd.Printf("%s %d images (%s)\n", prefix, s.Total(), strings.Join(parts, ", "))
}

func newScanCmd(opts *options) *cobra.Command {
	var (
		sf       scanFlags
		jsonFlag bool
	)

	scanCmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List the images backfill would process",
		Long:  "Scan a directory and print all candidate images (relative to the scan root). Skipped entries are reported on stderr.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := args[0]

			listing, err := scan.ScanRecords(os.DirFS(directory), ".", sf.options())
			if err != nil {
				return err
			}

			for _, s := range listing.Skipped {
				cmd.PrintErrf("skipped %s: %s\n", s.Path, s.Reason)
			}

			if jsonFlag {
				records := listing.Records
				if records == nil {
					records = []scan.Record{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			for _, r := range listing.Records {
				cmd.Println(r.Path)
			}

			if opts.verbose {
				cmd.PrintErrf("found %d images\n", len(listing.Records))
			}

			return nil
		},
	}

	sf.register(scanCmd)
	scanCmd.Flags().BoolVar(&jsonFlag, "json", false, "output as JSON")

	return scanCmd
}

func newParseNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-name [name]...",
		Short: "Show the timestamp encoded in file names",
		Long: "Interpret each file name with the known naming conventions, in order: " +
			strings.Join(filenamedate.Rules(), ", ") + ".",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			malformed := 0
			for _, arg := range args {
				res := filenamedate.Parse(filepath.Base(arg))
				switch res.Kind {
				case filenamedate.Matched:
					cmd.Printf("%s: %s (%s)\n", arg, res.Timestamp, res.Rule)
				case filenamedate.Invalid:
					malformed++
					cmd.Printf("%s: %s: %v\n", arg, res.Kind, res.Err)
				default:
					cmd.Printf("%s: %s\n", arg, res.Kind)
				}
			}
			if malformed > 0 {
				return fmt.Errorf("%d of %d names malformed", malformed, len(args))
			}
			return nil
		},
	}
}

type inspectRecord struct {
	Path              string `json:"path"`
	DateTime          string `json:"date_time,omitempty"`
	DateTimeOriginal  string `json:"date_time_original,omitempty"`
	DateTimeDigitized string `json:"date_time_digitized,omitempty"`
	Error             string `json:"error,omitempty"`
}

func newInspectRecord(path string, values timestamp.Values, err error) inspectRecord {
	rec := inspectRecord{Path: path}
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.DateTime, _ = values.Get(timestamp.DateTime)
	rec.DateTimeOriginal, _ = values.Get(timestamp.DateTimeOriginal)
	rec.DateTimeDigitized, _ = values.Get(timestamp.DateTimeDigitized)
	return rec
}

func newInspectCmd() *cobra.Command {
	var jsonFlag bool

	inspectCmd := &cobra.Command{
		Use:          "inspect [file]...",
		Short:        "Print the timestamp fields of images",
		Long:         "Read the timestamp fields of each file with an EXIF decoder independent of the one backfill writes with.",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			records := make([]inspectRecord, 0, len(args))
			failed := 0

			for _, arg := range args {
				values, err := exifcodec.ProbeFile(arg)
				if err != nil {
					failed++
				}
				records = append(records, newInspectRecord(arg, values, err))

				if jsonFlag {
					continue
				}
				if err != nil {
					cmd.PrintErrf("%s: %v\n", arg, err)
					continue
				}
				cmd.Println(arg)
				for _, f := range timestamp.Fields {
					v, ok := values.Get(f)
					if !ok {
						v = "-"
					}
					cmd.Printf("  %-18s %s\n", f.String()+":", v)
				}
			}

			if jsonFlag {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(records); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be read", failed, len(args))
			}
			return nil
		},
	}

	inspectCmd.Flags().BoolVar(&jsonFlag, "json", false, "output as JSON")

	return inspectCmd
}
