// Package backfill fills in missing capture timestamps for a tree of images.
//
// Every image is opened once, its timestamp resolved, absent fields set to the
// resolved value and the result saved to its planned destination. A failing
// image never stops the batch; its outcome is recorded in the Summary.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/exif-backfill/pkg/copy"
	"github.com/quidome/exif-backfill/pkg/exifcodec"
	"github.com/quidome/exif-backfill/pkg/filenamedate"
	"github.com/quidome/exif-backfill/pkg/plan"
	"github.com/quidome/exif-backfill/pkg/resolve"
	"github.com/quidome/exif-backfill/pkg/scan"
	"github.com/quidome/exif-backfill/pkg/timestamp"
)

// ErrVerifyMismatch is returned when a saved file does not read back with the
// expected timestamps.
var ErrVerifyMismatch = errors.New("saved timestamps do not match")

// ErrOutputIsInput is returned when the output directory is the input
// directory outside in-place mode.
var ErrOutputIsInput = errors.New("output directory is the input directory")

// Image is an opened file whose timestamp fields can be changed and saved.
type Image interface {
	Timestamps() timestamp.Values
	SetTimestamp(f timestamp.Field, value string) error
	Encode(w io.Writer) error
	Close() error
}

// OpenFunc opens the image at path.
type OpenFunc func(path string) (Image, error)

func openExif(path string) (Image, error) {
	img, err := exifcodec.Open(path)
	if err != nil {
		return nil, err
	}
	return img, nil
}

type Options struct {
	InputRoot  string
	OutputRoot string

	// Layout selects the destination of every image. LayoutInPlace rewrites
	// the inputs and ignores OutputRoot.
	Layout plan.Layout

	Scan scan.Options

	// Overwrite allows replacing existing files under OutputRoot.
	Overwrite bool

	// CopyUnresolved copies images whose timestamp could not be resolved to
	// their destination unmodified. It has no effect in place.
	CopyUnresolved bool

	// DryRun resolves and logs but writes nothing.
	DryRun bool

	// Verify re-opens every saved file and checks its timestamps.
	Verify bool

	// Jobs is the number of images processed concurrently.
	Jobs int

	Logger *zap.Logger

	// Open defaults to the EXIF codec.
	Open OpenFunc

	// ParseName defaults to filenamedate.Parse.
	ParseName func(name string) filenamedate.Result
}

func DefaultOptions() Options {
	return Options{
		Layout:         plan.LayoutTree,
		Scan:           scan.DefaultOptions(),
		CopyUnresolved: true,
		Jobs:           1,
	}
}

// Run processes every image found under opts.InputRoot.
//
// The returned error reports configuration, traversal or cancellation
// problems only. Per-image failures are counted in the Summary.
func Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.InputRoot == "" {
		return Summary{}, errors.New("input directory is required")
	}
	if opts.Layout == "" {
		opts.Layout = plan.LayoutTree
	}
	if _, err := plan.ParseLayout(string(opts.Layout)); err != nil {
		return Summary{}, err
	}
	if opts.Layout != plan.LayoutInPlace && opts.OutputRoot == "" {
		return Summary{}, errors.New("output directory is required unless running in place")
	}
	if opts.Layout != plan.LayoutInPlace {
		same, err := sameDir(opts.InputRoot, opts.OutputRoot)
		if err != nil {
			return Summary{}, err
		}
		if same {
			return Summary{}, fmt.Errorf("%w: %s", ErrOutputIsInput, opts.OutputRoot)
		}
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Open == nil {
		opts.Open = openExif
	}

	info, err := os.Stat(opts.InputRoot)
	if err != nil {
		return Summary{}, err
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%s: not a directory", opts.InputRoot)
	}

	listing, err := scan.ScanRecords(os.DirFS(opts.InputRoot), ".", opts.Scan)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", opts.InputRoot, err)
	}
	for _, s := range listing.Skipped {
		opts.Logger.Warn("skipped", zap.String("path", s.Path), zap.String("reason", s.Reason))
	}

	paths := make([]string, len(listing.Records))
	for i, r := range listing.Records {
		paths[i] = r.Path
	}
	ops := plan.Plan(opts.InputRoot, opts.OutputRoot, paths, opts.Layout)

	opts.Logger.Debug("starting",
		zap.Int("images", len(ops)),
		zap.String("layout", string(opts.Layout)),
		zap.Int("jobs", opts.Jobs),
		zap.Bool("dry_run", opts.DryRun))

	d := &driver{opts: opts, log: opts.Logger}
	results := make([]Result, len(ops))

	if opts.Jobs == 1 {
		for i, op := range ops {
			if err := ctx.Err(); err != nil {
				return Summary{}, err
			}
			results[i] = d.process(paths[i], op)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Jobs)
		for i, op := range ops {
			if gctx.Err() != nil {
				break
			}
			i, op := i, op
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = d.process(paths[i], op)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Summary{}, err
		}
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
	}

	return newSummary(results, listing.Skipped), nil
}

type driver struct {
	opts Options
	log  *zap.Logger
}

// inPlace reports whether outputs replace their sources. Only the layout
// decides this; an output root equal to the input root is rejected by Run.
func (d *driver) inPlace() bool {
	return d.opts.Layout == plan.LayoutInPlace
}

func (d *driver) copyOptions() copy.Options {
	return copy.Options{Overwrite: d.opts.Overwrite || d.inPlace()}
}

func (d *driver) process(rel string, op plan.Operation) (res Result) {
	res = Result{Path: rel, Destination: op.DestinationPath}
	log := d.log.With(zap.String("path", op.SourcePath))

	img, err := d.opts.Open(op.SourcePath)
	if err != nil {
		log.Error("failed to open", zap.Error(err))
		return res.fail(OpenFailure, err)
	}
	defer func() {
		if err := img.Close(); err != nil {
			log.Debug("close failed", zap.Error(err))
		}
	}()

	values := img.Timestamps()
	log.Debug("read timestamps", zap.Stringer("values", values))

	resolution, err := resolve.Resolve(values, path.Base(rel), resolve.Options{ParseName: d.opts.ParseName})
	if err != nil {
		if resolve.IsMalformed(err) {
			log.Error("malformed filename date", zap.Error(err))
			res = res.fail(MalformedDate, err)
		} else {
			log.Warn("failed to parse", zap.Error(err))
			res = res.fail(ParseFailure, err)
		}
		if d.opts.CopyUnresolved && !d.inPlace() && !d.opts.DryRun {
			if err := copy.File(op.SourcePath, op.DestinationPath, d.copyOptions()); err != nil {
				log.Error("failed to handle", zap.Error(err))
				res.Err = fmt.Errorf("%w; copy: %w", res.Err, err)
			}
		}
		return res
	}
	res.Resolution = resolution

	switch resolution.Source {
	case resolve.SourceMetadata:
		log.Info("kept existing value",
			zap.String("field", resolution.Field.String()),
			zap.String("value", resolution.Timestamp))
	case resolve.SourceFilename:
		log.Info("interpreted filename",
			zap.String("rule", resolution.Rule),
			zap.String("value", resolution.Timestamp))
	}

	if d.opts.DryRun {
		res.Written = resolution.Writes
		res.Outcome = OK
		return res
	}

	for _, f := range resolution.Writes {
		if err := img.SetTimestamp(f, resolution.Timestamp); err != nil {
			log.Error("failed to handle", zap.String("field", f.String()), zap.Error(err))
			return res.fail(SaveFailure, err)
		}
		log.Debug("set field", zap.String("field", f.String()), zap.String("value", resolution.Timestamp))
	}

	if err := d.save(img, op, len(resolution.Writes) > 0); err != nil {
		log.Error("failed to handle", zap.Error(err))
		return res.fail(SaveFailure, err)
	}
	res.Written = resolution.Writes

	if d.opts.Verify && (len(resolution.Writes) > 0 || !d.inPlace()) {
		want := resolve.Apply(values, resolution)
		if err := d.verify(op.DestinationPath, want); err != nil {
			log.Error("failed to handle", zap.Error(err))
			return res.fail(SaveFailure, err)
		}
	}

	res.Outcome = OK
	return res
}

// save writes img to the destination of op. An image without changes is
// copied byte for byte, or left alone when rewriting in place.
func (d *driver) save(img Image, op plan.Operation, modified bool) error {
	if !modified {
		if d.inPlace() {
			return nil
		}
		return copy.File(op.SourcePath, op.DestinationPath, d.copyOptions())
	}

	info, err := os.Stat(op.SourcePath)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if err := copy.Write(op.DestinationPath, info.Mode(), d.copyOptions(), img.Encode); err != nil {
		return fmt.Errorf("save %s: %w", op.DestinationPath, err)
	}
	return nil
}

func (d *driver) verify(dst string, want timestamp.Values) error {
	img, err := d.opts.Open(dst)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	defer img.Close()

	got := img.Timestamps()
	for _, f := range timestamp.Fields {
		g, gok := got.Get(f)
		w, wok := want.Get(f)
		if gok != wok || strings.TrimRight(g, " \x00") != strings.TrimRight(w, " \x00") {
			return fmt.Errorf("verify %s: %w: got %s, want %s", dst, ErrVerifyMismatch, got, want)
		}
	}
	return nil
}

// sameDir reports whether a and b name the same directory. A b that does not
// exist yet is never the same.
func sameDir(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}

	infoA, err := os.Stat(absA)
	if err != nil {
		return false, nil
	}
	infoB, err := os.Stat(absB)
	if err != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}
