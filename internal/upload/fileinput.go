// Package upload validates incoming media files and produces collision-free
// storage names for them.
package upload

// FileInput describes what a write operation wants done with one file field.
// It is a closed sum: Unchanged keeps the stored reference, Remove clears it,
// NewUpload replaces it with fresh bytes.
type FileInput interface {
	isFileInput()
}

// Unchanged keeps the currently stored file reference untouched. Validation is
// skipped entirely for it.
type Unchanged struct{}

func (Unchanged) isFileInput() {}

// Remove clears the stored file reference; the superseded blob is deleted
// after the owner record is persisted.
type Remove struct{}

func (Remove) isFileInput() {}

// NewUpload replaces the stored file with the given content.
type NewUpload struct {
	// Name is the client-declared filename, untrusted.
	Name string
	// ContentType is the client-declared MIME type, untrusted.
	ContentType string
	Content     []byte
}

func (NewUpload) isFileInput() {}
