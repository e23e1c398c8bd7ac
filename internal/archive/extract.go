package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrUnsupportedFormat indicates the blob is neither a ZIP nor a gzip container.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrNoDocument indicates a container was opened but held no primary document.
	ErrNoDocument = errors.New("no primary document found in archive")

	// ErrDecompressTimeout indicates decompression did not finish within its time budget.
	ErrDecompressTimeout = errors.New("decompression timed out")

	// ErrDecompressStream indicates the decompression stream failed.
	ErrDecompressStream = errors.New("decompression stream error")
)

// Options controls how a primary document is located inside a container.
type Options struct {
	// DocumentExtensions are matched case-insensitively against entry names.
	DocumentExtensions []string

	// PreferredNames are base names that win over any other ZIP candidate.
	PreferredNames []string

	// Timeout bounds every decompression call.
	Timeout time.Duration
}

// DefaultOptions returns the options used for Gramps exports.
func DefaultOptions() Options {
	return Options{
		DocumentExtensions: DefaultDocumentExtensions,
		PreferredNames:     DefaultPreferredNames,
		Timeout:            DefaultDecompressTimeout,
	}
}

// Result is the outcome of a successful extraction.
type Result struct {
	// PrimaryDocument is the decompressed canonical text document.
	PrimaryDocument string

	// Attachments maps in-archive paths to attachment bytes.
	Attachments map[string][]byte

	// SourceName labels the input for diagnostics.
	SourceName string
}

// Extractor resolves a primary document and its attachments from a blob.
// It holds no state between calls.
type Extractor struct {
	opts         Options
	decompressor *Decompressor
}

// NewExtractor creates an extractor using the gzip stream decompressor.
func NewExtractor(opts Options) *Extractor {
	return NewExtractorWithDecompressor(opts, NewDecompressor(opts.Timeout))
}

// NewExtractorWithDecompressor creates an extractor with a custom decompressor (for testing).
func NewExtractorWithDecompressor(opts Options, decompressor *Decompressor) *Extractor {
	if len(opts.DocumentExtensions) == 0 {
		opts.DocumentExtensions = DefaultDocumentExtensions
	}
	if opts.PreferredNames == nil {
		opts.PreferredNames = DefaultPreferredNames
	}
	return &Extractor{
		opts:         opts,
		decompressor: decompressor,
	}
}

// Extract classifies blob and unpacks it. Gzip input is either a tar
// archive (document plus attachments) or a bare compressed document; ZIP
// input is searched for a document, preferring root-level or well-known
// names. Any other input fails with ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, blob []byte, label string) (*Result, error) {
	format := Classify(blob)
	slog.Debug("Extracting archive", "label", label, "format", format.String(), "bytes", len(blob))

	switch format {
	case FormatGzip:
		return e.extractGzip(ctx, blob, label)
	case FormatZip:
		return e.extractZip(ctx, blob, label)
	default:
		return nil, fmt.Errorf("%w: %s: neither ZIP nor gzip signature detected", ErrUnsupportedFormat, label)
	}
}

func (e *Extractor) extractGzip(ctx context.Context, blob []byte, label string) (*Result, error) {
	raw, err := e.decompressor.Decompress(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	if !IsTar(raw) {
		return &Result{
			PrimaryDocument: DecodeText(raw),
			Attachments:     make(map[string][]byte),
			SourceName:      label,
		}, nil
	}

	result := &Result{
		Attachments: make(map[string][]byte),
		SourceName:  label,
	}
	found := false

	for _, entry := range ReadTarEntries(raw) {
		switch {
		case e.isDocument(entry.Name):
			if found {
				slog.Debug("Ignoring additional document candidate", "label", label, "name", entry.Name)
				continue
			}
			text, err := e.documentText(ctx, entry.Content)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", label, entry.Name, err)
			}
			result.PrimaryDocument = text
			found = true
		case IsAttachment(entry.Name):
			result.Attachments[entry.Name] = entry.Content
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: %s (tar)", ErrNoDocument, label)
	}
	return result, nil
}

func (e *Extractor) extractZip(ctx context.Context, blob []byte, label string) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid ZIP container: %v", ErrUnsupportedFormat, label, err)
	}

	document := e.selectZipDocument(reader.File)
	if document == nil {
		return nil, fmt.Errorf("%w: %s (zip)", ErrNoDocument, label)
	}

	content, err := readZipFile(document)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", label, document.Name, err)
	}
	text, err := e.documentText(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", label, document.Name, err)
	}

	result := &Result{
		PrimaryDocument: text,
		Attachments:     make(map[string][]byte),
		SourceName:      label,
	}

	for _, file := range reader.File {
		if file == document || file.FileInfo().IsDir() || !IsAttachment(file.Name) {
			continue
		}
		data, err := readZipFile(file)
		if err != nil {
			slog.Warn("Skipping unreadable attachment", "label", label, "name", file.Name, "error", err)
			continue
		}
		result.Attachments[file.Name] = data
	}

	return result, nil
}

// selectZipDocument returns the first preferred document candidate, or
// the first candidate overall when none is preferred. Ties between
// several preferred candidates go to the first in container order.
func (e *Extractor) selectZipDocument(files []*zip.File) *zip.File {
	var chosen *zip.File
	for _, file := range files {
		if file.FileInfo().IsDir() || !e.isDocument(file.Name) {
			continue
		}
		if e.isPreferred(file.Name) {
			return file
		}
		if chosen == nil {
			chosen = file
		}
	}
	return chosen
}

// documentText decodes a document entry, removing one more gzip layer when
// the entry carries its own gzip signature.
func (e *Extractor) documentText(ctx context.Context, content []byte) (string, error) {
	if IsGzip(content) {
		return e.decompressor.DecompressString(ctx, content)
	}
	return DecodeText(content), nil
}

func (e *Extractor) isDocument(name string) bool {
	return hasExtension(name, e.opts.DocumentExtensions)
}

func (e *Extractor) isPreferred(name string) bool {
	base := path.Base(name)
	for _, preferred := range e.opts.PreferredNames {
		if strings.EqualFold(base, preferred) {
			return true
		}
	}
	return isRootLevel(name)
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
