package port

// Extractor converts a file on disk into plain text.
type Extractor interface {
	// Extract returns the plain text of the file at path. Unsupported or
	// unreadable files fail with a *domain.ExtractionError.
	Extract(path string) (string, error)

	// Supported reports whether the file's type can be extracted, judged
	// by its extension.
	Supported(path string) bool
}
