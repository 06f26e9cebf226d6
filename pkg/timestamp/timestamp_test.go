package timestamp

import (
	"reflect"
	"testing"
	"time"
)

func TestFields_PriorityOrder(t *testing.T) {
	want := []string{"DateTime", "DateTimeOriginal", "DateTimeDigitized"}
	for i, f := range Fields {
		if f.String() != want[i] {
			t.Fatalf("field %d: got %q want %q", i, f.String(), want[i])
		}
	}
}

func TestField_TagsAndIfds(t *testing.T) {
	testCases := []struct {
		field Field
		tag   uint16
		ifd   string
	}{
		{DateTime, 0x0132, "IFD"},
		{DateTimeOriginal, 0x9003, "IFD/Exif"},
		{DateTimeDigitized, 0x9004, "IFD/Exif"},
	}

	for _, tc := range testCases {
		t.Run(tc.field.String(), func(t *testing.T) {
			if tc.field.Tag() != tc.tag {
				t.Fatalf("tag: got %#x want %#x", tc.field.Tag(), tc.tag)
			}
			if tc.field.IfdPath() != tc.ifd {
				t.Fatalf("ifd: got %q want %q", tc.field.IfdPath(), tc.ifd)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	f, ok := ParseField("DateTimeDigitized")
	if !ok || f != DateTimeDigitized {
		t.Fatalf("unexpected result: %v %v", f, ok)
	}
	if _, ok := ParseField("GPSDateStamp"); ok {
		t.Fatalf("expected unknown field")
	}
}

func TestFormat_NoZoneConversion(t *testing.T) {
	loc := time.FixedZone("TEST", -5*60*60)
	got := Format(time.Date(2023, 4, 1, 15, 30, 0, 0, loc))
	if got != "2023:04:01 15:30:00" {
		t.Fatalf("got %q", got)
	}
}

func TestValues_SetGetMissing(t *testing.T) {
	var v Values
	if !reflect.DeepEqual(v.Missing(), []Field{DateTime, DateTimeOriginal, DateTimeDigitized}) {
		t.Fatalf("zero value should have every field missing, got %v", v.Missing())
	}

	v.Set(DateTimeOriginal, "2020:01:02 03:04:05")
	if s, ok := v.Get(DateTimeOriginal); !ok || s != "2020:01:02 03:04:05" {
		t.Fatalf("unexpected value %q %v", s, ok)
	}
	if !reflect.DeepEqual(v.Missing(), []Field{DateTime, DateTimeDigitized}) {
		t.Fatalf("unexpected missing: %v", v.Missing())
	}
	if v.Complete() {
		t.Fatalf("expected incomplete")
	}
}

func TestValues_BlankIsAbsent(t *testing.T) {
	var v Values
	v.Set(DateTime, "   \x00")
	if v.Has(DateTime) {
		t.Fatalf("blank value should be absent")
	}

	v.Set(DateTime, "2020:01:02 03:04:05")
	v.Set(DateTime, "")
	if v.Has(DateTime) {
		t.Fatalf("setting empty should clear the field")
	}
}

func TestValues_String(t *testing.T) {
	var v Values
	v.Set(DateTime, "2020:01:02 03:04:05")
	want := "DateTime=2020:01:02 03:04:05 DateTimeOriginal=- DateTimeDigitized=-"
	if v.String() != want {
		t.Fatalf("got %q want %q", v.String(), want)
	}
}
