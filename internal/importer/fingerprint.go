package importer

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint returns the hex BLAKE3 digest of an archive's bytes.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// FolderSlug turns a vault folder into a file name safe for lock files.
// Distinct folders may share a slug; they then share a lock.
func FolderSlug(folder string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(folder), "-"), "-")
	if slug == "" {
		return "root"
	}
	return slug
}
