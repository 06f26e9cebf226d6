package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the EXIF date/time text format: "YYYY:MM:DD HH:MM:SS".
const Layout = "2006:01:02 15:04:05"

// Field identifies one of the capture-timestamp tags.
type Field int

const (
	DateTime Field = iota
	DateTimeOriginal
	DateTimeDigitized

	fieldCount
)

// Fields lists every Field in priority order.
var Fields = [fieldCount]Field{DateTime, DateTimeOriginal, DateTimeDigitized}

var fieldNames = [fieldCount]string{"DateTime", "DateTimeOriginal", "DateTimeDigitized"}

// EXIF tag IDs.
var fieldTags = [fieldCount]uint16{0x0132, 0x9003, 0x9004}

// IFD paths in go-exif notation.
var fieldIfds = [fieldCount]string{"IFD", "IFD/Exif", "IFD/Exif"}

func (f Field) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	return f >= 0 && f < fieldCount
}

// Tag returns the EXIF tag ID of the field.
func (f Field) Tag() uint16 { return fieldTags[f] }

// IfdPath returns the IFD the field lives in, e.g. "IFD/Exif".
func (f Field) IfdPath() string { return fieldIfds[f] }

// ParseField looks a field up by its EXIF tag name.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if fieldNames[f] == name {
			return f, true
		}
	}
	return 0, false
}

// Format renders t in Layout. The wall clock of t is used as-is.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Values holds the current value of each field for one image.
// The zero value has every field absent.
type Values struct {
	text    [fieldCount]string
	present [fieldCount]bool
}

// Get returns the value of f and whether it is present.
func (v Values) Get(f Field) (string, bool) {
	if !f.Valid() {
		return "", false
	}
	return v.text[f], v.present[f]
}

// Set stores s for f. Blank values (only spaces or NULs) leave f absent.
func (v *Values) Set(f Field, s string) {
	if !f.Valid() {
		return
	}
	if strings.Trim(s, " \x00") == "" {
		v.text[f], v.present[f] = "", false
		return
	}
	v.text[f], v.present[f] = s, true
}

// Has reports whether f is present.
func (v Values) Has(f Field) bool {
	_, ok := v.Get(f)
	return ok
}

// Missing returns the absent fields in priority order.
func (v Values) Missing() []Field {
	var out []Field
	for _, f := range Fields {
		if !v.present[f] {
			out = append(out, f)
		}
	}
	return out
}

// Complete reports whether every field is present.
func (v Values) Complete() bool {
	return len(v.Missing()) == 0
}

// String renders the values as "DateTime=... DateTimeOriginal=-" for logs.
func (v Values) String() string {
	parts := make([]string, 0, len(Fields))
	for _, f := range Fields {
		s, ok := v.Get(f)
		if !ok {
			s = "-"
		}
		parts = append(parts, f.String()+"="+s)
	}
	return strings.Join(parts, " ")
}
