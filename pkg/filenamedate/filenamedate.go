// Package filenamedate recognizes capture timestamps embedded in camera and
// messaging-app file names.
package filenamedate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/quidome/exif-backfill/pkg/timestamp"
)

// Kind tells whether a name matched one of the known conventions.
type Kind int

const (
	// NoMatch means no convention applies to the name.
	NoMatch Kind = iota
	// Matched means a convention applied and produced a timestamp.
	Matched
	// Invalid means a convention applied but its digits are not a valid date/time.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Invalid:
		return "invalid"
	default:
		return "no match"
	}
}

// Result is the outcome of Parse.
type Result struct {
	Kind Kind

	// Rule names the convention that applied. Empty for NoMatch.
	Rule string

	// Timestamp is formatted in timestamp.Layout. Set only for Matched.
	Timestamp string

	// Err is a *MalformedDateError. Set only for Invalid.
	Err error
}

// MalformedDateError reports digits that have the shape of a date but do not
// form a valid calendar date/time, e.g. month 13.
type MalformedDateError struct {
	Name   string
	Rule   string
	Digits string
	Err    error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed %s date %q in file name %q: %v", e.Rule, e.Digits, e.Name, e.Err)
}

func (e *MalformedDateError) Unwrap() error { return e.Err }

type rule struct {
	name   string
	re     *regexp.Regexp
	layout string
}

// Rules are tried in order; the first match wins. Patterns are anchored at the
// start of the name, anything after the matched prefix is ignored.
var rules = []rule{
	// WhatsApp: IMG-20230401-WA0002.jpg, date only.
	{name: "whatsapp", re: regexp.MustCompile(`^IMG-([0-9]{8})-WA`), layout: "20060102"},
	// Camera: 20230401_153000.jpg or 20230401-153000.jpg.
	{name: "datetime", re: regexp.MustCompile(`^([0-9]{8})[-_]([0-9]{6})`), layout: "20060102150405"},
}

// Rules returns the convention names in the order they are tried.
func Rules() []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.name)
	}
	return names
}

// Parse interprets a base name (no directory components).
func Parse(name string) Result {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}

		var digits string
		for _, g := range m[1:] {
			digits += g
		}

		t, err := time.Parse(r.layout, digits)
		if err != nil {
			return Result{
				Kind: Invalid,
				Rule: r.name,
				Err:  &MalformedDateError{Name: name, Rule: r.name, Digits: digits, Err: err},
			}
		}
		return Result{Kind: Matched, Rule: r.name, Timestamp: timestamp.Format(t)}
	}

	return Result{Kind: NoMatch}
}
