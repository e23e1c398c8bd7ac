package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

type fixtureFile struct {
	name    string
	content []byte
}

func tarBytes(t *testing.T, files []fixtureFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(f.content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", f.name, err)
		}
		if _, err := tw.Write(f.content); err != nil {
			t.Fatalf("tar write %s: %v", f.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

func zipBytes(t *testing.T, files []fixtureFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", f.name, err)
		}
		if _, err := w.Write(f.content); err != nil {
			t.Fatalf("zip write %s: %v", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

const grampsXML = `<?xml version="1.0" encoding="UTF-8"?><database xmlns="http://gramps-project.org/xml/1.7.1/"></database>`

func TestExtract_GzipTarPackage(t *testing.T) {
	photo := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	blob := gzipBytes(t, tarBytes(t, []fixtureFile{
		{"data.gramps", []byte(grampsXML)},
		{"photo1.jpg", photo},
		{"notes.txt", []byte("not an attachment")},
	}))

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "family.gpkg")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != grampsXML {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %v", keys(result.Attachments))
	}
	if !bytes.Equal(result.Attachments["photo1.jpg"], photo) {
		t.Error("photo1.jpg content does not round-trip")
	}
	if result.SourceName != "family.gpkg" {
		t.Errorf("SourceName = %q", result.SourceName)
	}
}

func TestExtract_GzipTarNestedCompressedDocument(t *testing.T) {
	blob := gzipBytes(t, tarBytes(t, []fixtureFile{
		{"data.gramps", gzipBytes(t, []byte(grampsXML))},
	}))

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "nested.gpkg")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != grampsXML {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
}

func TestExtract_GzipTarFirstDocumentWins(t *testing.T) {
	blob := gzipBytes(t, tarBytes(t, []fixtureFile{
		{"backup/old.xml", []byte("<old/>")},
		{"data.gramps", []byte("<new/>")},
	}))

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "two.gpkg")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != "<old/>" {
		t.Errorf("PrimaryDocument = %q, want the first candidate", result.PrimaryDocument)
	}
}

func TestExtract_BareGzipDocument(t *testing.T) {
	blob := gzipBytes(t, []byte(grampsXML))

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "data.gramps")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != grampsXML {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
	if len(result.Attachments) != 0 {
		t.Errorf("Expected no attachments, got %v", keys(result.Attachments))
	}
}

func TestExtract_GzipTarWithoutDocument(t *testing.T) {
	blob := gzipBytes(t, tarBytes(t, []fixtureFile{
		{"photo1.jpg", []byte{1, 2, 3}},
	}))

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "photos.tgz")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Expected ErrNoDocument, got %v", err)
	}
	if result != nil {
		t.Error("Expected nil result on failure")
	}
}

func TestExtract_ZipPrefersRootDocument(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"archive/nested.gramps", []byte("<nested/>")},
		{"root.gramps", []byte("<root/>")},
		{"media/photo.png", []byte{0x89, 'P', 'N', 'G'}},
	})

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "export.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != "<root/>" {
		t.Errorf("PrimaryDocument = %q, want the root-level document", result.PrimaryDocument)
	}
	if _, ok := result.Attachments["media/photo.png"]; !ok {
		t.Errorf("Expected attachment keyed by its archive path, got %v", keys(result.Attachments))
	}
}

func TestExtract_ZipPrefersWellKnownName(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"export/other.xml", []byte("<other/>")},
		{"export/data.gramps", []byte("<data/>")},
	})

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "export.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != "<data/>" {
		t.Errorf("PrimaryDocument = %q, want data.gramps", result.PrimaryDocument)
	}
}

func TestExtract_ZipNestedOnlyDocument(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"export/tree.xml", []byte("<tree/>")},
		{"export/scan.pdf", []byte("%PDF")},
	})

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "export.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != "<tree/>" {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
	if len(result.Attachments) != 1 {
		t.Errorf("Expected 1 attachment, got %v", keys(result.Attachments))
	}
}

func TestExtract_ZipCompressedDocument(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"data.gramps", gzipBytes(t, []byte(grampsXML))},
	})

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "export.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != grampsXML {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
}

func TestExtract_ZipWithoutDocument(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"photo.jpg", []byte{1}},
		{"readme.txt", []byte("hi")},
	})

	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "photos.zip")
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("Expected ErrNoDocument, got %v", err)
	}
	if result != nil {
		t.Error("Expected nil result on failure")
	}
}

func TestExtract_CorruptZipIsUnsupported(t *testing.T) {
	blob := []byte("PK this is not really a zip archive")

	_, err := NewExtractor(DefaultOptions()).Extract(context.Background(), blob, "broken.zip")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtract_UnknownFormat(t *testing.T) {
	result, err := NewExtractor(DefaultOptions()).Extract(context.Background(), []byte(grampsXML), "plain.xml")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if result != nil {
		t.Error("Expected nil result for unsupported input")
	}
	if !strings.Contains(err.Error(), "plain.xml") {
		t.Errorf("Expected label in error, got %q", err.Error())
	}
}

func TestExtract_TimeoutPropagates(t *testing.T) {
	stream := newStalledStream()
	d := NewDecompressorWithStream(30*time.Millisecond, func() Stream { return stream })
	extractor := NewExtractorWithDecompressor(DefaultOptions(), d)

	_, err := extractor.Extract(context.Background(), gzipBytes(t, []byte(grampsXML)), "slow.gpkg")
	if !errors.Is(err, ErrDecompressTimeout) {
		t.Errorf("Expected ErrDecompressTimeout, got %v", err)
	}
}

func TestExtract_CustomDocumentExtensions(t *testing.T) {
	blob := zipBytes(t, []fixtureFile{
		{"data.gramps", []byte("<gramps/>")},
		{"tree.ged", []byte("0 HEAD")},
	})
	opts := DefaultOptions()
	opts.DocumentExtensions = []string{".ged"}
	opts.PreferredNames = []string{}

	result, err := NewExtractor(opts).Extract(context.Background(), blob, "export.zip")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.PrimaryDocument != "0 HEAD" {
		t.Errorf("PrimaryDocument = %q", result.PrimaryDocument)
	}
}

func TestIsAttachment(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"photo.JPG", true},
		{"media/scan.pdf", true},
		{"deep/dir/image.webp", true},
		{"letter.docx", true},
		{"data.gramps", false},
		{"notes.txt", false},
		{"jpg", false},
	}
	for _, tt := range tests {
		if got := IsAttachment(tt.name); got != tt.want {
			t.Errorf("IsAttachment(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
