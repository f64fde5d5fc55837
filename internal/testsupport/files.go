package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// AudioBytes returns size bytes of fake audio derived from seed, so two
// songs never share content.
func AudioBytes(seed string, size int) []byte {
	if size <= 0 {
		size = 1
	}
	out := make([]byte, size)
	for i := range out {
		b := byte(i)
		if seed != "" {
			b ^= seed[i%len(seed)]
		}
		out[i] = b
	}
	return out
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
