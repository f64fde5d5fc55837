// Package checksum hashes downloaded audio files with BLAKE3.
package checksum

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"lukechampine.com/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// Result describes a verification.
type Result struct {
	Digest string
	// Match is true when the digest equals the recorded one, or when nothing
	// was recorded.
	Match    bool
	Recorded bool
}

// Mismatch reports a recorded digest that differs from the file.
func (r Result) Mismatch() bool { return r.Recorded && !r.Match }

// File returns the base64 encoded BLAKE3-256 digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Reader(f)
}

// Reader hashes everything r yields.
func Reader(r io.Reader) (string, error) {
	h := blake3.New(Size, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// Bytes hashes data.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Verify hashes path and compares it with expected. An empty expected
// digest means nothing was recorded.
func Verify(path, expected string) (Result, error) {
	digest, err := File(path)
	if err != nil {
		return Result{}, err
	}
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return Result{Digest: digest, Match: true}, nil
	}
	return Result{Digest: digest, Match: digest == expected, Recorded: true}, nil
}
