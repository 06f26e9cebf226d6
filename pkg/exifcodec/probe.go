package exifcodec

import (
	"fmt"
	"io"
	"os"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/quidome/exif-backfill/pkg/timestamp"
)

// Probe reads the timestamp fields with goexif, a decoder independent of the
// one used for writing. It understands JPEG and bare TIFF/EXIF streams.
func Probe(r io.Reader) (timestamp.Values, error) {
	var values timestamp.Values

	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return values, fmt.Errorf("decode exif: %w", err)
	}

	for _, f := range timestamp.Fields {
		tag, err := x.Get(exif.FieldName(f.String()))
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		values.Set(f, s)
	}
	return values, nil
}

// ProbeFile is Probe on the file at path.
func ProbeFile(path string) (timestamp.Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return timestamp.Values{}, err
	}
	defer f.Close()

	values, err := Probe(f)
	if err != nil {
		return values, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}
