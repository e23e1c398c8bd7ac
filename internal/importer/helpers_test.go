package importer

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sha1n/mcp-lineage-server/internal/config"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

const familyXML = `<?xml version="1.0" encoding="UTF-8"?>
<database xmlns="http://gramps-project.org/xml/1.7.1/">
  <people>
    <person handle="_P1" id="I0001">
      <name type="Birth Name">
        <first>Anna</first>
        <surname>Müller</surname>
      </name>
      <noteref hlink="_N1"/>
    </person>
  </people>
  <notes>
    <note handle="_N1" id="N0001" type="Research">
      <text>Emigrated to Ohio in 1852.</text>
    </note>
    <note handle="_N2" id="N0002" type="Transcript">
      <text>Baptism register, St. Jacobi parish.</text>
    </note>
  </notes>
</database>`

type archiveFile struct {
	name    string
	content []byte
}

// writeArchive writes a gzip-compressed tar package into dir.
func writeArchive(t *testing.T, dir, name string, files ...archiveFile) string {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
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

	var gzBuf bytes.Buffer
	zw := gzip.NewWriter(&gzBuf)
	if _, err := zw.Write(tarBuf.Bytes()); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, gzBuf.Bytes(), 0644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	return path
}

// writeFamilyArchive writes the standard fixture with one photo.
func writeFamilyArchive(t *testing.T, dir string) string {
	t.Helper()
	return writeArchive(t, dir, "family.gpkg",
		archiveFile{"data.gramps", []byte(familyXML)},
		archiveFile{"media/photo1.jpg", []byte("\xff\xd8\xff jpeg")},
	)
}

func testSettings(t *testing.T) *config.ImportSettings {
	t.Helper()
	return &config.ImportSettings{
		BaseDir:           t.TempDir(),
		NotesFolder:       "Genealogy/Notes",
		MediaFolder:       "Genealogy/Media",
		DecompressTimeout: 5 * time.Second,
		LockTimeout:       2 * time.Second,
		MaxResults:        20,
	}
}

// newTestService creates a service over an in-memory vault.
func newTestService(t *testing.T, settings *config.ImportSettings) (*Service, *vault.Memory) {
	t.Helper()
	v := vault.NewMemory()
	svc, err := NewService(settings, v, nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	t.Cleanup(func() {
		if err := svc.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return svc, v
}
