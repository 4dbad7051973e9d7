package model

// EntryType is the kind of a directory listing entry.
type EntryType string

const (
	EntryTypeFile EntryType = "file"
	EntryTypeDir  EntryType = "dir"
)

// FileEntry is a single directory listing row.
type FileEntry struct {
	// Name is the entry name, or the path relative to the listed directory
	// when listing recursively.
	Name string    `json:"name"`
	Type EntryType `json:"entry_type"`
	// Size in bytes, nil for directories or when the backend can't know it.
	Size *int64 `json:"size"`
}

// IsDir returns true if the entry is a directory.
func (f FileEntry) IsDir() bool { return f.Type == EntryTypeDir }
