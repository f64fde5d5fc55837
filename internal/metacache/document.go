package metacache

import (
	"encoding/json"
	"errors"
	"fmt"

	"siren/internal/msr"
)

// Version is the only document version understood.
const Version = 0

// ErrInvalidDocument reports a document that fails validation.
var ErrInvalidDocument = errors.New("invalid metadata document")

// Entry is the cached state of one song.
type Entry struct {
	CID  string
	Data msr.SongDetail
	// Path is empty until the song has been downloaded.
	Path string
	// B3Sum is the base64 BLAKE3 digest of the file at Path, empty when
	// unknown.
	B3Sum string
}

type wireEntry struct {
	CID   string         `json:"cid"`
	Data  msr.SongDetail `json:"data"`
	Path  *string        `json:"path"`
	B3Sum *string        `json:"b3sum"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		CID:   e.CID,
		Data:  e.Data,
		Path:  nullString(e.Path),
		B3Sum: nullString(e.B3Sum),
	})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var w wireEntry
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Entry{CID: w.CID, Data: w.Data}
	if w.Path != nil {
		e.Path = *w.Path
	}
	if w.B3Sum != nil {
		e.B3Sum = *w.B3Sum
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Document is the persisted form of the cache.
type Document struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

func newDocument() Document {
	return Document{Version: Version, Entries: map[string]Entry{}}
}

// Validate checks the version, that every entry is keyed by its cid and
// that every song record is well formed.
func (d Document) Validate() error {
	if d.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidDocument, d.Version, Version)
	}
	if d.Entries == nil {
		return fmt.Errorf("%w: entries missing", ErrInvalidDocument)
	}
	for key, entry := range d.Entries {
		if key == "" || key != entry.CID {
			return fmt.Errorf("%w: entry %q has cid %q", ErrInvalidDocument, key, entry.CID)
		}
		if err := entry.Data.Validate(); err != nil {
			return fmt.Errorf("%w: entry %q: %w", ErrInvalidDocument, key, err)
		}
	}
	return nil
}

func decodeDocument(data []byte) (Document, error) {
	var raw struct {
		Version *int              `json:"version"`
		Entries *map[string]Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if raw.Version == nil {
		return Document{}, fmt.Errorf("%w: version missing", ErrInvalidDocument)
	}
	doc := Document{Version: *raw.Version}
	if raw.Entries != nil {
		doc.Entries = *raw.Entries
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (d Document) clone() Document {
	out := Document{Version: d.Version, Entries: make(map[string]Entry, len(d.Entries))}
	for k, v := range d.Entries {
		out.Entries[k] = v
	}
	return out
}
