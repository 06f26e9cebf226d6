// Package timestamp defines the three EXIF capture-timestamp fields and the
// fixed text layout they share.
//
// The field order is the priority order used when resolving a timestamp:
// DateTime, then DateTimeOriginal, then DateTimeDigitized.
package timestamp
