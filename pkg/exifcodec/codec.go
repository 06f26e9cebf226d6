// Package exifcodec reads and rewrites the capture-timestamp fields of the
// EXIF block embedded in JPEG and PNG files.
//
// Only the metadata is touched: image data is written back as parsed, without
// re-encoding pixels.
package exifcodec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	pngstructure "github.com/dsoprea/go-png-image-structure/v2"
	riimage "github.com/dsoprea/go-utility/v2/image"

	"github.com/quidome/exif-backfill/pkg/timestamp"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither JPEG nor PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrClosed is returned when an Image is used after Close.
	ErrClosed = errors.New("image is closed")
)

// container is the part of a parsed media file that carries EXIF.
type container interface {
	Exif() (rootIfd *exif.Ifd, data []byte, err error)
	ConstructExifBuilder() (rootIb *exif.IfdBuilder, err error)
	SetExif(ib *exif.IfdBuilder) (err error)
}

type parser interface {
	ParseBytes(data []byte) (mc riimage.MediaContext, err error)
	LooksLikeFormat(data []byte) bool
}

type format struct {
	name   string
	parser parser
	write  func(mc riimage.MediaContext, w io.Writer) error
}

var formats = []format{
	{
		name:   "jpeg",
		parser: jpegstructure.NewJpegMediaParser(),
		write: func(mc riimage.MediaContext, w io.Writer) error {
			return mc.(*jpegstructure.SegmentList).Write(w)
		},
	},
	{
		name:   "png",
		parser: pngstructure.NewPngMediaParser(),
		write: func(mc riimage.MediaContext, w io.Writer) error {
			return mc.(*pngstructure.ChunkSlice).WriteTo(w)
		},
	},
}

// Image is a decoded file with its timestamp fields.
type Image struct {
	format *format
	mc     riimage.MediaContext
	c      container

	values timestamp.Values
	rootIb *exif.IfdBuilder
	dirty  bool
	closed bool
}

// Open reads and decodes the file at path.
func Open(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode parses an in-memory JPEG or PNG file.
func Decode(data []byte) (*Image, error) {
	var f *format
	for i := range formats {
		if formats[i].parser.LooksLikeFormat(data) {
			f = &formats[i]
			break
		}
	}
	if f == nil {
		return nil, ErrUnsupportedFormat
	}

	mc, err := f.parser.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.name, err)
	}
	c, ok := mc.(container)
	if !ok {
		return nil, fmt.Errorf("%s: %w", f.name, ErrUnsupportedFormat)
	}

	img := &Image{format: f, mc: mc, c: c}
	if err := img.readValues(); err != nil {
		return nil, err
	}
	return img, nil
}

func (img *Image) readValues() error {
	_, raw, err := img.c.Exif()
	if err != nil {
		if isNoExif(err) {
			return nil
		}
		return fmt.Errorf("read exif: %w", err)
	}

	tags, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return fmt.Errorf("read exif tags: %w", err)
	}

	for _, tag := range tags {
		for _, f := range timestamp.Fields {
			if tag.TagId != f.Tag() || tag.IfdPath != f.IfdPath() || img.values.Has(f) {
				continue
			}
			if s, ok := tag.Value.(string); ok {
				img.values.Set(f, s)
			} else {
				img.values.Set(f, tag.Formatted)
			}
		}
	}
	return nil
}

// newRootBuilder returns an empty IFD0 builder for files without EXIF. The
// JPEG parser does this itself; the PNG parser does not.
func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	if err := exif.LoadStandardTags(ti); err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

// go-logging wraps library errors, so the sentinel is not always reachable
// through errors.Is.
func isNoExif(err error) bool {
	return errors.Is(err, exif.ErrNoExif) || strings.Contains(err.Error(), exif.ErrNoExif.Error())
}

// Format returns "jpeg" or "png".
func (img *Image) Format() string {
	return img.format.name
}

// Timestamps returns the current field values, including pending writes.
func (img *Image) Timestamps() timestamp.Values {
	return img.values
}

// Modified reports whether SetTimestamp was called.
func (img *Image) Modified() bool {
	return img.dirty
}

// SetTimestamp stages value for field f. Nothing is written until Encode.
func (img *Image) SetTimestamp(f timestamp.Field, value string) error {
	if img.closed {
		return ErrClosed
	}
	if !f.Valid() {
		return fmt.Errorf("set %v: unknown field", f)
	}

	if img.rootIb == nil {
		rootIb, err := img.c.ConstructExifBuilder()
		if err != nil && isNoExif(err) {
			rootIb, err = newRootBuilder()
		}
		if err != nil {
			return fmt.Errorf("build exif: %w", err)
		}
		img.rootIb = rootIb
	}

	ib, err := exif.GetOrCreateIbFromRootIb(img.rootIb, f.IfdPath())
	if err != nil {
		return fmt.Errorf("get %s: %w", f.IfdPath(), err)
	}
	if err := ib.SetStandardWithName(f.String(), value); err != nil {
		return fmt.Errorf("set %v: %w", f, err)
	}

	img.values.Set(f, value)
	img.dirty = true
	return nil
}

// Encode writes the file, with staged timestamps, to w.
func (img *Image) Encode(w io.Writer) error {
	if img.closed {
		return ErrClosed
	}
	if img.rootIb != nil {
		if err := img.c.SetExif(img.rootIb); err != nil {
			return fmt.Errorf("update exif: %w", err)
		}
	}
	if err := img.format.write(img.mc, w); err != nil {
		return fmt.Errorf("write %s: %w", img.format.name, err)
	}
	return nil
}

// Close releases the parsed file. It is safe to call more than once.
func (img *Image) Close() error {
	img.closed = true
	img.mc = nil
	img.c = nil
	img.rootIb = nil
	return nil
}
