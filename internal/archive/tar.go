package archive

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"
)

// BlockSize is the tar record block size. Headers occupy one block and
// entry content is padded to a multiple of it.
const BlockSize = 512

// Header field offsets (POSIX ustar).
const (
	nameOffset     = 0
	nameLength     = 100
	sizeOffset     = 124
	sizeLength     = 12
	typeFlagOffset = 156
	prefixOffset   = 345
	prefixLength   = 155
)

// TarEntry is one entry read from a tar archive.
// Content always has exactly Size bytes; block padding is discarded.
type TarEntry struct {
	Name    string
	Size    int64
	Regular bool
	Content []byte
}

// tarCursor walks a tar byte buffer block by block.
type tarCursor struct {
	data   []byte
	offset int64
}

func (c *tarCursor) remaining() int64 {
	return int64(len(c.data)) - c.offset
}

// advance moves the cursor past n bytes, rounded up to the block size.
func (c *tarCursor) advance(n int64) {
	c.offset += PaddedSize(n)
}

// PaddedSize rounds n up to the next multiple of BlockSize.
func PaddedSize(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + BlockSize - 1) / BlockSize * BlockSize
}

// ReadTarEntries parses a tar archive held in memory. Only regular files
// with a non-empty name and non-zero size are returned, in archive order.
// Malformed headers never fail the parse: an unreadable size counts as
// zero and the entry is skipped.
func ReadTarEntries(data []byte) []TarEntry {
	cursor := &tarCursor{data: data}
	var entries []TarEntry

	for cursor.remaining() >= BlockSize {
		header := data[cursor.offset : cursor.offset+BlockSize]
		if isZeroBlock(header) {
			break
		}
		cursor.advance(BlockSize)

		entry := TarEntry{
			Name:    headerName(header),
			Size:    parseOctal(header[sizeOffset : sizeOffset+sizeLength]),
			Regular: header[typeFlagOffset] == 0 || header[typeFlagOffset] == '0',
		}

		if entry.Size > cursor.remaining() {
			slog.Debug("Tar entry truncated, stopping", "name", entry.Name, "size", entry.Size, "remaining", cursor.remaining())
			break
		}
		content := data[cursor.offset : cursor.offset+entry.Size]
		cursor.advance(entry.Size)

		switch {
		case !entry.Regular:
			slog.Debug("Skipping non-regular tar entry", "name", entry.Name, "type", header[typeFlagOffset])
			continue
		case entry.Name == "":
			slog.Debug("Skipping unnamed tar entry", "size", entry.Size)
			continue
		case entry.Size == 0:
			slog.Debug("Skipping empty tar entry", "name", entry.Name)
			continue
		}

		entry.Content = content
		entries = append(entries, entry)
	}

	return entries
}

// ReadTar parses a tar archive into a map of entry name to content.
func ReadTar(data []byte) map[string][]byte {
	files := make(map[string][]byte)
	for _, entry := range ReadTarEntries(data) {
		files[entry.Name] = entry.Content
	}
	return files
}

// headerName returns the entry name, joined with the ustar prefix field
// when the header carries one.
func headerName(header []byte) string {
	name := cString(header[nameOffset : nameOffset+nameLength])
	if IsTar(header) {
		if prefix := cString(header[prefixOffset : prefixOffset+prefixLength]); prefix != "" && name != "" {
			name = prefix + "/" + name
		}
	}
	return strings.ToValidUTF8(name, "�")
}

// parseOctal reads a tar numeric field. The field is cut at the first NUL
// or space after any leading spaces; anything unparseable yields 0.
func parseOctal(field []byte) int64 {
	field = bytes.TrimLeft(field, " ")
	if i := bytes.IndexAny(field, "\x00 "); i >= 0 {
		field = field[:i]
	}
	if len(field) == 0 {
		return 0
	}
	n, err := strconv.ParseInt(string(field), 8, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func isZeroBlock(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}
