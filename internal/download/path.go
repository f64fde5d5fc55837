package download

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Source is the song information a download needs.
type Source interface {
	CID() string
	Name() string
	SourceURL() string
}

// GeneratePath returns dir/{cid}_{name}{ext}, where ext is taken from the
// source URL path.
func GeneratePath(dir string, song Source) string {
	return filepath.Join(dir, FileName(song))
}

// FileName is the base name GeneratePath uses.
func FileName(song Source) string {
	name := SanitizeName(song.Name())
	base := strings.TrimSpace(song.CID())
	if name != "" {
		base += "_" + name
	}
	return base + sourceExt(song.SourceURL())
}

// SanitizeName normalizes name to NFC and removes characters that cannot
// appear in a file name.
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || r == 0:
			b.WriteRune('_')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "." || out == ".." {
		return strings.Repeat("_", len(out))
	}
	return out
}

func sourceExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
