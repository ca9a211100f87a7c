package home

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithPath(t *testing.T) {
	d, err := New("/tmp/lexocr-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Path() != "/tmp/lexocr-test" {
		t.Errorf("Path() = %q, want %q", d.Path(), "/tmp/lexocr-test")
	}
}

func TestNewDefaultPath(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !strings.HasSuffix(d.Path(), DefaultDirName) {
		t.Errorf("Path() = %q, want suffix %q", d.Path(), DefaultDirName)
	}
}

func TestDerivedPaths(t *testing.T) {
	d, err := New("/srv/lexocr")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"data", d.DataPath(), "/srv/lexocr/data"},
		{"config", d.ConfigPath(), "/srv/lexocr/config.yaml"},
		{"audit db", d.AuditDBPath(), "/srv/lexocr/data/audit.db"},
		{"uploads", d.UploadsDir(), "/srv/lexocr/data/uploads"},
		{"model cache", d.ModelCacheDir(), "/srv/lexocr/models"},
		{"run dir", d.RunDir("abc"), "/srv/lexocr/data/runs/abc"},
		{"run upload", d.RunUploadPath("abc", "scan.pdf"), "/srv/lexocr/data/runs/abc/scan.pdf"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestRunUploadPathStripsDirectories(t *testing.T) {
	d, _ := New("/srv/lexocr")
	got := d.RunUploadPath("abc", "../../etc/passwd")
	if got != "/srv/lexocr/data/runs/abc/passwd" {
		t.Errorf("RunUploadPath = %q, traversal not stripped", got)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "home")
	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	if d.Exists() {
		t.Fatal("Exists() = true before creation")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if !d.Exists() {
		t.Error("Exists() = false after EnsureExists")
	}
	for _, dir := range []string{d.DataPath(), d.UploadsDir(), d.ModelCacheDir()} {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			t.Errorf("%s not created as directory (err=%v)", dir, err)
		}
	}
	if d.ConfigExists() {
		t.Error("ConfigExists() = true with no config written")
	}
}

func TestEnsureRunDir(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.EnsureRunDir("run-1"); err != nil {
		t.Fatalf("EnsureRunDir() error = %v", err)
	}
	if st, err := os.Stat(d.RunDir("run-1")); err != nil || !st.IsDir() {
		t.Errorf("run dir not created (err=%v)", err)
	}
}
