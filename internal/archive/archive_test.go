package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()

	cfg := Config{AccountID: "abc123"}
	if got := cfg.endpoint(); got != "https://abc123.r2.cloudflarestorage.com" {
		t.Errorf("endpoint() = %q", got)
	}

	cfg.Endpoint = "http://localhost:9000"
	if got := cfg.endpoint(); got != "http://localhost:9000" {
		t.Errorf("endpoint() override = %q", got)
	}
}

func TestLockInfoJSON(t *testing.T) {
	t.Parallel()

	data := `{"owner":"runner-123","expires_at":"2026-01-20T10:30:00Z"}`
	var info LockInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		t.Fatalf("Failed to parse lock info: %v", err)
	}
	if info.Owner != "runner-123" {
		t.Errorf("Owner = %q, want runner-123", info.Owner)
	}
	want := time.Date(2026, 1, 20, 10, 30, 0, 0, time.UTC)
	if !info.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", info.ExpiresAt, want)
	}
}

func TestRunLockOwnerIDsAreUnique(t *testing.T) {
	t.Parallel()

	lock1 := NewRunLock(nil, "locks/harvest.lock", time.Hour)
	lock2 := NewRunLock(nil, "locks/harvest.lock", time.Hour)
	if lock1.OwnerID() == lock2.OwnerID() {
		t.Error("Expected distinct owner IDs for distinct lock instances")
	}
	if lock1.OwnerID() == "" {
		t.Error("OwnerID should not be empty")
	}
}

func TestCompressDecompressFile(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	srcPath := filepath.Join(tmpDir, "cache.db")
	compressedPath := filepath.Join(tmpDir, "cache.db.zst")
	restoredPath := filepath.Join(tmpDir, "restored.db")

	testData := strings.Repeat("INSERT INTO documents VALUES ('12345678','2026-1'); ", 2000)
	if err := os.WriteFile(srcPath, []byte(testData), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := CompressFile(srcPath, compressedPath); err != nil {
		t.Fatalf("CompressFile failed: %v", err)
	}

	srcInfo, _ := os.Stat(srcPath)
	compressedInfo, err := os.Stat(compressedPath)
	if err != nil {
		t.Fatalf("Compressed file not created: %v", err)
	}
	if compressedInfo.Size() >= srcInfo.Size() {
		t.Errorf("Compression did not shrink repetitive data: %d >= %d", compressedInfo.Size(), srcInfo.Size())
	}

	f, err := os.Open(compressedPath)
	if err != nil {
		t.Fatalf("Failed to open compressed file: %v", err)
	}
	defer f.Close()

	if err := DecompressStream(f, restoredPath); err != nil {
		t.Fatalf("DecompressStream failed: %v", err)
	}

	restored, err := os.ReadFile(restoredPath)
	if err != nil {
		t.Fatalf("Failed to read restored file: %v", err)
	}
	if string(restored) != testData {
		t.Errorf("Restored data mismatch: got %d bytes, want %d", len(restored), len(testData))
	}
}

func TestCompressFileErrors(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()

	if err := CompressFile("/nonexistent/file.db", filepath.Join(tmpDir, "out.zst")); err == nil {
		t.Error("Expected error for missing source file")
	}

	srcPath := filepath.Join(tmpDir, "source.db")
	if err := os.WriteFile(srcPath, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	if err := CompressFile(srcPath, "/nonexistent/dir/out.zst"); err == nil {
		t.Error("Expected error for invalid destination")
	}
}

func TestDecompressStreamRejectsGarbage(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	garbage := strings.NewReader("this is not a zstd frame")
	if err := DecompressStream(garbage, filepath.Join(tmpDir, "out.db")); err == nil {
		t.Error("Expected error for invalid zstd input")
	}
}

func TestCompressBytesRoundTrip(t *testing.T) {
	t.Parallel()

	page := strings.Repeat("<tr><td>CÁLCULO I</td><td>64</td></tr>", 500)
	compressed, err := compressBytes([]byte(page))
	if err != nil {
		t.Fatalf("compressBytes failed: %v", err)
	}
	if len(compressed) >= len(page) {
		t.Errorf("Compression did not shrink the page: %d >= %d", len(compressed), len(page))
	}

	restored, err := DecompressBytes(compressed)
	if err != nil {
		t.Fatalf("DecompressBytes failed: %v", err)
	}
	if !bytes.Equal(restored, []byte(page)) {
		t.Error("Round trip lost data")
	}
}

func TestPageKey(t *testing.T) {
	t.Parallel()

	got := PageKey("run-42", "2026-1", "12345678")
	want := "runs/run-42/2026-1/12345678.html.zst"
	if got != want {
		t.Errorf("PageKey = %q, want %q", got, want)
	}
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing account and endpoint", cfg: Config{AccessKeyID: "k", SecretAccessKey: "s", Bucket: "b"}},
		{name: "missing access key", cfg: Config{AccountID: "a", SecretAccessKey: "s", Bucket: "b"}},
		{name: "missing secret", cfg: Config{AccountID: "a", AccessKeyID: "k", Bucket: "b"}},
		{name: "missing bucket", cfg: Config{AccountID: "a", AccessKeyID: "k", SecretAccessKey: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("Expected config validation error")
			}
		})
	}
}
