package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`D:\Image\2024\scan_0001.jpg`, "Image/2024/scan_0001.jpg"},
		{"Image/2024/scan_0001.jpg", "Image/2024/scan_0001.jpg"},
		{`\\share\Image\scan.jpg`, "share/Image/scan.jpg"},
		{"../../etc/passwd", "etc/passwd"},
		{"./Image/scan.jpg", "Image/scan.jpg"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFileResolver(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Image", "2024"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Image", "2024", "scan.jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewFileResolver(root)

	data, err := r.Resolve(context.Background(), `D:\Image\2024\scan.jpg`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "jpegdata" {
		t.Errorf("data = %q", data)
	}

	_, err = r.Resolve(context.Background(), "Image/2024/missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing file: err = %v, want ErrNotFound", err)
	}
}

func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Image/2024/scan.jpg":
			w.Write([]byte("jpegdata"))
		case "/Image/2024/missing.jpg":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL+"/", time.Second)

	data, err := r.Resolve(context.Background(), `D:\Image\2024\scan.jpg`)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(data) != "jpegdata" {
		t.Errorf("data = %q", data)
	}

	_, err = r.Resolve(context.Background(), "Image/2024/missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("404: err = %v, want ErrNotFound", err)
	}

	_, err = r.Resolve(context.Background(), "Image/2024/broken.jpg")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("500: err = %v, want infrastructure error", err)
	}
}
