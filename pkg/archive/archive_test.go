package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildStoreOnly(t *testing.T) {
	files := []File{
		{Name: "certificates_jpg/00001_Ann.jpg", Data: []byte("jpeg-bytes")},
		{Name: "certificates_jpg/00002_Bob.jpg", Data: []byte("more-jpeg-bytes")},
	}
	blob, err := Build(files)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("reading archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("got %d entries, want 2", len(zr.File))
	}
	for i, f := range zr.File {
		if f.Method != zip.Store {
			t.Errorf("entry %s uses method %d, want store", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(data, files[i].Data) {
			t.Errorf("entry %s round-tripped to %q", f.Name, data)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	blob, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if _, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob))); err != nil {
		t.Errorf("empty archive unreadable: %v", err)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		base, format      string
		part, total       int
		want              string
	}{
		{"certificates", "jpg", 1, 1, "certificates_jpg.zip"},
		{"certificates", "pdf", 2, 3, "certificates_pdf_part2_of_3.zip"},
	}
	for _, tt := range tests {
		if got := Name(tt.base, tt.format, tt.part, tt.total); got != tt.want {
			t.Errorf("Name(%q,%q,%d,%d) = %q, want %q", tt.base, tt.format, tt.part, tt.total, got, tt.want)
		}
	}
}

func TestDirExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := DirExporter{Dir: dir}

	path, err := e.Export(context.Background(), "certs_jpg.zip", []byte("blob"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading exported file: %v", err)
	}
	if string(data) != "blob" {
		t.Errorf("exported data = %q", data)
	}
}

func TestDirExporterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (DirExporter{Dir: t.TempDir()}).Export(ctx, "x.zip", nil); err == nil {
		t.Error("cancelled export should fail")
	}
}
