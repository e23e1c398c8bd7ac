package archive

import (
	"path"
	"strings"
)

// AttachmentPatterns lists the media and document files bundled alongside
// the primary document. The set is shared by the ZIP and tar paths.
var AttachmentPatterns = []string{
	// Images
	"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp",
	"*.bmp", "*.tif", "*.tiff", "*.svg",

	// Documents
	"*.pdf", "*.doc", "*.docx",
}

// DefaultDocumentExtensions are the primary document extensions.
var DefaultDocumentExtensions = []string{".gramps", ".xml"}

// DefaultPreferredNames are well-known primary document filenames.
var DefaultPreferredNames = []string{"data.gramps"}

// IsAttachment reports whether name matches one of AttachmentPatterns.
func IsAttachment(name string) bool {
	for _, pattern := range AttachmentPatterns {
		if matchPattern(pattern, name) {
			return true
		}
	}
	return false
}

// hasExtension reports whether name ends in one of exts, ignoring case.
func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// isRootLevel reports whether an archive entry sits at the archive root.
func isRootLevel(name string) bool {
	name = strings.TrimPrefix(name, "./")
	return !strings.Contains(name, "/")
}

// matchPattern matches an entry path against a glob pattern.
// "*.ext" patterns match the extension case-insensitively at any depth.
func matchPattern(pattern, name string) bool {
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(strings.ToLower(name), strings.ToLower(pattern[1:]))
	}

	if pattern == name {
		return true
	}

	matched, _ := path.Match(pattern, path.Base(name))
	return matched
}
