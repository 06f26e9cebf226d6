package scan

import (
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"
)

func TestScan_MaxDepth(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.jpg":            &fstest.MapFile{Data: []byte("a")},
		"root/b.PNG":            &fstest.MapFile{Data: []byte("b")},
		"root/c.txt":            &fstest.MapFile{Data: []byte("c")},
		"root/sub/d.jpeg":       &fstest.MapFile{Data: []byte("d")},
		"root/sub/nested/e.jpg": &fstest.MapFile{Data: []byte("e")},
	}

	testCases := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{
			name:     "depth 0 includes only top-level",
			maxDepth: 0,
			want:     []string{"a.jpg", "b.PNG"},
		},
		{
			name:     "depth 1 includes one subdirectory",
			maxDepth: 1,
			want:     []string{"a.jpg", "b.PNG", "sub/d.jpeg"},
		},
		{
			name:     "unlimited includes nested subdirectories",
			maxDepth: -1,
			want:     []string{"a.jpg", "b.PNG", "sub/d.jpeg", "sub/nested/e.jpg"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxDepth = tc.maxDepth

			got, err := Scan(fsys, "root", opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("unexpected result\n got: %#v\nwant: %#v", got, tc.want)
			}
		})
	}
}

func TestScan_IgnoresNonImages(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.txt": &fstest.MapFile{Data: []byte("a")},
		"root/b.xmp": &fstest.MapFile{Data: []byte("b")},
		"root/c.mp4": &fstest.MapFile{Data: []byte("c")},
	}

	got, err := Scan(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("expected no images, got %#v", got)
	}
}

func TestScan_EmptyExtensionsAdmitsAllFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.txt":  &fstest.MapFile{Data: []byte("a")},
		"root/b.jpg":  &fstest.MapFile{Data: []byte("b")},
		"root/README": &fstest.MapFile{Data: []byte("c")},
	}

	opts := DefaultOptions()
	opts.Extensions = nil

	got, err := Scan(fsys, "root", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"README", "a.txt", "b.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected result\n got: %#v\nwant: %#v", got, want)
	}
}

func TestScan_IgnoresDotFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"root/.gitignore":     &fstest.MapFile{Data: []byte("*")},
		"root/.hidden.jpg":    &fstest.MapFile{Data: []byte("h")},
		"root/.cache/x.jpg":   &fstest.MapFile{Data: []byte("x")},
		"root/visible.jpg":    &fstest.MapFile{Data: []byte("v")},
		"root/sub/.gitignore": &fstest.MapFile{Data: []byte("*")},
	}

	opts := DefaultOptions()
	opts.Extensions = nil

	got, err := Scan(fsys, "root", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(got, []string{"visible.jpg"}) {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestScanRecords_ReportsSymlinks(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.jpg":        &fstest.MapFile{Data: []byte("a")},
		"root/link.jpg":     &fstest.MapFile{Data: []byte("a.jpg"), Mode: fs.ModeSymlink},
		"root/linkdir":      &fstest.MapFile{Data: []byte("sub"), Mode: fs.ModeSymlink},
		"root/sub/b.jpg":    &fstest.MapFile{Data: []byte("b")},
		"root/sub/pipe.jpg": &fstest.MapFile{Mode: fs.ModeNamedPipe},
	}

	listing, err := ScanRecords(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var paths []string
	for _, r := range listing.Records {
		paths = append(paths, r.Path)
	}
	if !reflect.DeepEqual(paths, []string{"a.jpg", "sub/b.jpg"}) {
		t.Fatalf("unexpected records %#v", paths)
	}

	wantSkipped := []Skipped{
		{Path: "link.jpg", Reason: ReasonSymlink},
		{Path: "linkdir", Reason: ReasonSymlink},
		{Path: "sub/pipe.jpg", Reason: ReasonNotRegular},
	}
	if !reflect.DeepEqual(listing.Skipped, wantSkipped) {
		t.Fatalf("unexpected skipped\n got: %#v\nwant: %#v", listing.Skipped, wantSkipped)
	}
}

func TestScanRecords_GlobMode(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.jpg":     &fstest.MapFile{Data: []byte("a")},
		"root/b.jpeg":    &fstest.MapFile{Data: []byte("b")},
		"root/c.png":     &fstest.MapFile{Data: []byte("c")},
		"root/sub/d.jpg": &fstest.MapFile{Data: []byte("d")},
	}

	opts := DefaultOptions()
	opts.Mode = ModeGlob

	got, err := Scan(fsys, "root", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a.jpg", "b.jpeg"}) {
		t.Fatalf("unexpected result %#v", got)
	}

	opts.Pattern = "sub/*.jpg"
	got, err = Scan(fsys, "root", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"sub/d.jpg"}) {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestScanRecords_NaturalOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"root/img10.jpg": &fstest.MapFile{Data: []byte("a")},
		"root/img2.jpg":  &fstest.MapFile{Data: []byte("b")},
		"root/img1.jpg":  &fstest.MapFile{Data: []byte("c")},
	}

	got, err := Scan(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"img1.jpg", "img2.jpg", "img10.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order\n got: %#v\nwant: %#v", got, want)
	}
}

func TestScanRecords_RecordFields(t *testing.T) {
	fsys := fstest.MapFS{
		"root/a.jpg": &fstest.MapFile{Data: []byte("abcd")},
	}

	listing, err := ScanRecords(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listing.Records) != 1 || listing.Records[0].FileSizeBytes != 4 {
		t.Fatalf("unexpected records %#v", listing.Records)
	}
}

func TestScan_InvalidOptions(t *testing.T) {
	fsys := fstest.MapFS{}

	testCases := []struct {
		name string
		mod  func(*Options)
	}{
		{"negative depth", func(o *Options) { o.MaxDepth = -2 }},
		{"unknown mode", func(o *Options) { o.Mode = "zigzag" }},
		{"bad pattern", func(o *Options) { o.Mode = ModeGlob; o.Pattern = "[" }},
		{"empty pattern", func(o *Options) { o.Mode = ModeGlob; o.Pattern = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mod(&opts)

			if _, err := Scan(fsys, "root", opts); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(fstest.MapFS{}, "root", DefaultOptions()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
