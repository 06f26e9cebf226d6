// Package resolve picks the capture timestamp of an image and plans which
// timestamp fields receive it.
//
// Existing metadata always wins: if any field is populated, the first one in
// priority order is used verbatim and the file name is not consulted. Only
// when every field is absent is the file name parsed.
package resolve

import (
	"errors"
	"fmt"

	"github.com/quidome/exif-backfill/pkg/filenamedate"
	"github.com/quidome/exif-backfill/pkg/timestamp"
)

// ErrUnresolved is returned when no field is populated and the file name
// matches no known convention.
var ErrUnresolved = errors.New("could not resolve timestamp")

// Source describes where the resolved timestamp came from.
type Source string

const (
	SourceMetadata Source = "metadata"
	SourceFilename Source = "filename"
)

// Resolution is the single timestamp chosen for an image and the fields it
// will be written to.
type Resolution struct {
	Timestamp string
	Source    Source

	// Field is the populated field the value was taken from (SourceMetadata).
	Field timestamp.Field

	// Rule is the file name convention that matched (SourceFilename).
	Rule string

	// Writes lists the absent fields, in priority order.
	Writes []timestamp.Field
}

// Options configures Resolve.
type Options struct {
	// ParseName interprets a base name. If nil, filenamedate.Parse is used.
	ParseName func(name string) filenamedate.Result
}

// Resolve applies the precedence policy to the current values of an image.
// name must be a base name.
//
// A malformed file name date is returned as an error wrapping
// *filenamedate.MalformedDateError.
func Resolve(values timestamp.Values, name string, opts Options) (Resolution, error) {
	for _, f := range timestamp.Fields {
		if v, ok := values.Get(f); ok {
			return Resolution{
				Timestamp: v,
				Source:    SourceMetadata,
				Field:     f,
				Writes:    values.Missing(),
			}, nil
		}
	}

	parse := opts.ParseName
	if parse == nil {
		parse = filenamedate.Parse
	}

	res := parse(name)
	switch res.Kind {
	case filenamedate.Matched:
		return Resolution{
			Timestamp: res.Timestamp,
			Source:    SourceFilename,
			Rule:      res.Rule,
			Writes:    values.Missing(),
		}, nil
	case filenamedate.Invalid:
		return Resolution{}, fmt.Errorf("resolve %s: %w", name, res.Err)
	default:
		return Resolution{}, fmt.Errorf("%s: %w", name, ErrUnresolved)
	}
}

// Apply returns values with every field in res.Writes set to res.Timestamp.
// Populated fields are never touched.
func Apply(values timestamp.Values, res Resolution) timestamp.Values {
	for _, f := range res.Writes {
		if values.Has(f) {
			continue
		}
		values.Set(f, res.Timestamp)
	}
	return values
}

// IsMalformed reports whether err carries a malformed file name date.
func IsMalformed(err error) bool {
	var malformed *filenamedate.MalformedDateError
	return errors.As(err, &malformed)
}
