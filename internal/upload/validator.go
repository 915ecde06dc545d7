package upload

import (
	"fmt"
	"strings"

	"modmixx/internal/config"
	"modmixx/internal/models"
	"modmixx/internal/observability"

	"github.com/oklog/ulid/v2"
)

// Kind distinguishes the two validated media types.
type Kind int

const (
	KindAudio Kind = iota
	KindImage
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "image"
}

// maxBaseNameLen is the sanitized base-name truncation length.
const maxBaseNameLen = 50

var audioExtensions = map[string]struct{}{
	"mp3": {}, "wav": {}, "flac": {}, "m4a": {}, "aac": {}, "ogg": {},
}

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "webp": {},
}

var audioMIMETypes = map[string]struct{}{
	"audio/mpeg": {}, "audio/mp3": {}, "audio/wav": {}, "audio/x-wav": {},
	"audio/flac": {}, "audio/mp4": {}, "audio/aac": {}, "audio/ogg": {},
	"audio/x-m4a": {},
}

var imageMIMETypes = map[string]struct{}{
	"image/jpeg": {}, "image/jpg": {}, "image/png": {}, "image/webp": {},
}

// ValidatedFile is an accepted upload, carrying the sanitized name the file
// will be stored under.
type ValidatedFile struct {
	// SanitizedName is the cleaned base name with extension, without the
	// uniqueness suffix.
	SanitizedName string
	// ContentType is the declared MIME type, lowercased.
	ContentType string
	Content     []byte

	ext  string
	base string
}

// StorageKey builds the object-store key for this file: prefix, sanitized
// base, and a ULID so concurrent uploads of identically named files can never
// collide and the original filename pattern is not exposed verbatim. ULIDs
// sort lexicographically by creation time, which keeps bucket listings in
// upload order.
func (f *ValidatedFile) StorageKey(prefix string) string {
	return fmt.Sprintf("%s/%s-%s.%s", strings.TrimSuffix(prefix, "/"), f.base, ulid.Make().String(), f.ext)
}

// Validator checks size, type and filename of incoming uploads. Limits come
// from injected configuration so tests can tighten them.
type Validator struct {
	maxAudioBytes int64
	maxImageBytes int64
}

// NewValidator builds a Validator from configuration.
func NewValidator(cfg *config.Config) *Validator {
	return &Validator{
		maxAudioBytes: int64(cfg.MaxAudioUploadMB) * 1024 * 1024,
		maxImageBytes: int64(cfg.MaxImageUploadMB) * 1024 * 1024,
	}
}

// Validate checks a new upload against the size, extension and MIME rules for
// its kind. fallbackBase replaces the base name when sanitization strips it to
// nothing (e.g. a filename consisting only of disallowed characters).
func (v *Validator) Validate(in NewUpload, kind Kind, fallbackBase string) (*ValidatedFile, error) {
	if len(in.Content) == 0 {
		return nil, v.reject(kind, "empty", "No file uploaded")
	}

	maxBytes := v.maxAudioBytes
	if kind == KindImage {
		maxBytes = v.maxImageBytes
	}
	if int64(len(in.Content)) > maxBytes {
		label := "Audio"
		if kind == KindImage {
			label = "Image"
		}
		return nil, v.reject(kind, "too_large",
			fmt.Sprintf("%s file too large (max %dMB)", label, maxBytes/(1024*1024)))
	}

	// Path traversal characters mean the client is not sending a plain
	// filename; reject outright rather than trying to sanitize.
	if strings.Contains(in.Name, "..") || strings.ContainsAny(in.Name, `/\`) {
		return nil, v.reject(kind, "bad_filename", "Invalid filename")
	}

	ext := extensionOf(in.Name)
	allowedExts := audioExtensions
	allowedMIMEs := audioMIMETypes
	if kind == KindImage {
		allowedExts = imageExtensions
		allowedMIMEs = imageMIMETypes
	}
	if _, ok := allowedExts[ext]; !ok {
		return nil, v.reject(kind, "bad_extension",
			fmt.Sprintf("Unsupported %s file type .%s", kind.String(), ext))
	}

	declaredType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if _, ok := allowedMIMEs[declaredType]; !ok {
		return nil, v.reject(kind, "bad_mime",
			fmt.Sprintf("Unsupported %s content type %q", kind.String(), in.ContentType))
	}

	base := sanitizeBaseName(in.Name, fallbackBase)

	return &ValidatedFile{
		SanitizedName: base + "." + ext,
		ContentType:   declaredType,
		Content:       in.Content,
		ext:           ext,
		base:          base,
	}, nil
}

func (v *Validator) reject(kind Kind, reason, message string) error {
	observability.UploadRejections.WithLabelValues(kind.String(), reason).Inc()
	return models.NewValidationError(message)
}

// extensionOf returns the lowercased substring after the last dot, empty when
// there is none.
func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// sanitizeBaseName strips the base name (without extension) to an allow-list
// of characters and truncates it. A base that sanitizes to nothing gets the
// fallback instead.
func sanitizeBaseName(name, fallback string) string {
	base := name
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		base = name[:idx]
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '(', r == ')', r == '[', r == ']':
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if len(cleaned) > maxBaseNameLen {
		cleaned = strings.TrimSpace(cleaned[:maxBaseNameLen])
	}
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
