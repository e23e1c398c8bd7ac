// Package importer turns genealogy archives into vault notes: it extracts
// and parses an archive, materializes its notes under a per-folder lock,
// copies attachments, indexes the notes for search and records every
// import in a manifest.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/sha1n/mcp-lineage-server/internal/archive"
	"github.com/sha1n/mcp-lineage-server/internal/config"
	"github.com/sha1n/mcp-lineage-server/internal/domain"
	"github.com/sha1n/mcp-lineage-server/internal/gramps"
	"github.com/sha1n/mcp-lineage-server/internal/materialize"
	"github.com/sha1n/mcp-lineage-server/internal/vault"
)

const (
	// LockFilename is the name of the startup import lock file
	LockFilename = "import.lock"

	// MaxParallelImports is the maximum number of concurrent archive imports
	MaxParallelImports = 4

	maxReportedErrors = 10
)

// ErrNotReady indicates the note index has not been opened yet.
var ErrNotReady = errors.New("note index not ready")

// ImportOptions selects the target of one import.
type ImportOptions struct {
	// Folder is the vault folder for notes. Empty means the configured notes folder.
	Folder string

	// Overwrite replaces notes and attachments in place instead of adding
	// suffixed copies, and forces re-import of unchanged archives.
	Overwrite bool
}

// Summary reports the outcome of one import.
type Summary struct {
	Archive            string
	Fingerprint        string
	Folder             string
	Skipped            bool
	Notes              int
	Failed             int
	Attachments        int
	AttachmentsSkipped int
	Indexed            int
	Errors             []string
	Duration           time.Duration
}

func (s *Summary) addError(msg string) {
	if len(s.Errors) < maxReportedErrors {
		s.Errors = append(s.Errors, msg)
	}
}

// String renders the summary for humans.
func (s *Summary) String() string {
	name := filepath.Base(s.Archive)
	if s.Skipped {
		return fmt.Sprintf("Skipped %s: unchanged since its last import into %s", name, s.Folder)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Imported %s into %s\n", name, s.Folder))
	sb.WriteString(fmt.Sprintf("Notes: %d written, %d failed\n", s.Notes, s.Failed))
	sb.WriteString(fmt.Sprintf("Attachments: %d written, %d skipped\n", s.Attachments, s.AttachmentsSkipped))
	sb.WriteString(fmt.Sprintf("Indexed: %d\n", s.Indexed))
	if len(s.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range s.Errors {
			sb.WriteString("- " + e + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Service coordinates archive imports, the note index and the manifest.
type Service struct {
	settings     *config.ImportSettings
	vault        vault.Vault
	extractor    *archive.Extractor
	materializer *materialize.Materializer
	body         materialize.BodyConverter
	indexer      *Indexer
	manifest     *Manifest
	lock         *FileLock
	metrics      *Metrics
	index        bleve.Index
	ready        bool
	mu           sync.RWMutex
}

// NewService creates an import service writing into v. metrics may be nil.
func NewService(settings *config.ImportSettings, v vault.Vault, metrics *Metrics) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	if v == nil {
		return nil, fmt.Errorf("vault cannot be nil")
	}
	aliases := materialize.Aliases(settings.PropertyAliases)
	if err := aliases.Validate(); err != nil {
		return nil, fmt.Errorf("invalid property aliases: %w", err)
	}

	for _, dir := range []string{settings.BaseDir, filepath.Join(settings.BaseDir, "indexes"), filepath.Join(settings.BaseDir, "locks")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	manifest, err := LoadManifest(filepath.Join(settings.BaseDir, ManifestFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	opts := archive.DefaultOptions()
	if settings.DecompressTimeout > 0 {
		opts.Timeout = settings.DecompressTimeout
	}
	body := materialize.PlainBody

	return &Service{
		settings:  settings,
		vault:     v,
		extractor: archive.NewExtractor(opts),
		materializer: materialize.New(v, materialize.Options{
			Aliases: aliases,
			Body:    body,
		}),
		body:     body,
		indexer:  NewIndexer(settings.BaseDir),
		manifest: manifest,
		lock:     NewFileLock(filepath.Join(settings.BaseDir, LockFilename)),
		metrics:  metrics,
	}, nil
}

// Initialize imports the configured archives with leader/follower logic and
// opens the note index. Only the instance holding the startup lock imports;
// others wait for it, up to the lock timeout.
func (s *Service) Initialize(ctx context.Context) error {
	acquired, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		slog.Info("Acquired import leader lock", "archives", len(s.settings.Archives))
		if err := s.ImportAll(ctx, s.settings.Archives); err != nil {
			slog.Error("Startup import failed", "error", err)
		}
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	} else {
		slog.Info("Another instance is importing, waiting for completion")
		if err := s.lock.LockWithContext(ctx, s.settings.LockTimeout); err != nil {
			slog.Warn("Timeout waiting for import, using existing index", "error", err)
		} else if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to unlock", "error", err)
		}
	}

	return s.openIndex()
}

// ImportAll imports archives concurrently into the configured notes folder.
func (s *Service) ImportAll(ctx context.Context, archives []string) error {
	if len(archives) == 0 {
		return nil
	}

	sem := make(chan struct{}, MaxParallelImports)
	var wg sync.WaitGroup
	errChan := make(chan error, len(archives))

	for _, archivePath := range archives {
		wg.Add(1)
		go func(archivePath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			summary, err := s.Import(ctx, archivePath, ImportOptions{Overwrite: s.settings.Overwrite})
			if err != nil {
				slog.Error("Failed to import archive", "archive", archivePath, "error", err)
				errChan <- fmt.Errorf("import %s: %w", archivePath, err)
				return
			}
			slog.Info("Archive imported", "archive", archivePath, "skipped", summary.Skipped, "notes", summary.Notes, "failed", summary.Failed)
		}(archivePath)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d archive import(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Import imports one archive file. Unchanged archives already imported
// into the same folder are skipped unless opts.Overwrite is set. Note-level
// failures are counted in the summary; only failures that stop the whole
// archive are returned as errors.
func (s *Service) Import(ctx context.Context, archivePath string, opts ImportOptions) (*Summary, error) {
	start := time.Now()
	summary, err := s.importArchive(ctx, archivePath, opts)
	elapsed := time.Since(start)
	if summary != nil {
		summary.Duration = elapsed
	}

	switch {
	case err != nil:
		s.metrics.ObserveImport(OutcomeFailed, elapsed)
	case summary.Skipped:
		s.metrics.ObserveImport(OutcomeSkipped, elapsed)
	default:
		s.metrics.ObserveImport(OutcomeImported, elapsed)
	}
	return summary, err
}

func (s *Service) importArchive(ctx context.Context, archivePath string, opts ImportOptions) (*Summary, error) {
	key, err := filepath.Abs(archivePath)
	if err != nil {
		return nil, fmt.Errorf("invalid archive path %q: %w", archivePath, err)
	}

	folder := opts.Folder
	if strings.TrimSpace(folder) == "" {
		folder = s.settings.NotesFolder
	}
	folder, err = vault.CleanPath(folder)
	if err != nil {
		return nil, fmt.Errorf("invalid folder %q: %w", opts.Folder, err)
	}

	blob, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	summary := &Summary{Archive: key, Fingerprint: Fingerprint(blob), Folder: folder}
	if !opts.Overwrite && s.manifest.IsCurrent(key, summary.Fingerprint, folder) {
		slog.Info("Archive unchanged, skipping", "archive", key, "folder", folder)
		summary.Skipped = true
		return summary, nil
	}

	slog.Info("Importing archive", "archive", key, "folder", folder, "overwrite", opts.Overwrite)
	if err := s.run(ctx, blob, summary, opts.Overwrite); err != nil {
		if errors.Is(err, archive.ErrDecompressTimeout) {
			s.metrics.IncrementDecompressTimeouts()
		}
		s.manifest.RecordError(key, folder, err)
		s.saveManifest()
		return summary, err
	}

	s.manifest.Record(ImportState{
		Archive:     key,
		Fingerprint: summary.Fingerprint,
		Folder:      folder,
		ImportedAt:  time.Now(),
		Notes:       summary.Notes,
		Failed:      summary.Failed,
		Attachments: summary.Attachments,
	})
	s.saveManifest()
	return summary, nil
}

// run extracts, parses and materializes an archive blob.
func (s *Service) run(ctx context.Context, blob []byte, summary *Summary, overwrite bool) error {
	result, err := s.extractor.Extract(ctx, blob, filepath.Base(summary.Archive))
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	db, err := gramps.Parse(result.PrimaryDocument)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	refs := materialize.BuildReferenceMap(db.People, db.Events, db.Places)
	refs.Annotate(db.Notes)

	lock := NewFileLock(s.folderLockPath(summary.Folder))
	if err := lock.LockWithContext(ctx, s.settings.LockTimeout); err != nil {
		return fmt.Errorf("failed to lock folder %s: %w", summary.Folder, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("Failed to unlock folder", "folder", summary.Folder, "error", err)
		}
	}()

	batch := s.materializer.NewBatch(summary.Folder, overwrite)
	docs := make([]domain.NoteDocument, 0, len(db.Notes))
	for _, note := range db.Notes {
		if err := ctx.Err(); err != nil {
			s.metrics.AddNotes(summary.Notes, summary.Failed)
			return fmt.Errorf("import canceled: %w", err)
		}
		r := batch.Materialize(note)
		if !r.OK {
			summary.Failed++
			summary.addError(fmt.Sprintf("%s: %s", r.Path, r.Error))
			continue
		}
		summary.Notes++
		docs = append(docs, NewNoteDocument(r, s.body.NoteToBody(note)))
	}
	s.metrics.AddNotes(summary.Notes, summary.Failed)

	s.writeAttachments(result.Attachments, summary, overwrite)

	indexed, err := s.indexDocuments(docs)
	if err != nil {
		slog.Warn("Failed to index notes", "archive", summary.Archive, "error", err)
		summary.addError("index: " + err.Error())
	}
	summary.Indexed = indexed
	return nil
}

// writeAttachments copies attachments under the media folder, keeping
// their in-archive paths. Unsafe paths are skipped.
func (s *Service) writeAttachments(attachments map[string][]byte, summary *Summary, overwrite bool) {
	names := make([]string, 0, len(attachments))
	for name := range attachments {
		names = append(names, name)
	}
	sort.Strings(names)

	written := 0
	for _, name := range names {
		rel, err := vault.CleanPath(name)
		if err != nil {
			slog.Warn("Skipping attachment with unsafe path", "name", name)
			summary.AttachmentsSkipped++
			continue
		}
		target := path.Join(s.settings.MediaFolder, rel)
		if !overwrite && s.vault.Exists(target) {
			summary.AttachmentsSkipped++
			continue
		}
		if err := s.vault.WriteBinary(target, attachments[name]); err != nil {
			summary.AttachmentsSkipped++
			summary.addError(fmt.Sprintf("%s: %s", target, err))
			continue
		}
		written++
	}
	summary.Attachments = written
	s.metrics.AddAttachments(written)
}

func (s *Service) indexDocuments(docs []domain.NoteDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.openIndex(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IndexNotes(s.index, docs)
}

// openIndex opens the note index once.
func (s *Service) openIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return nil
	}
	index, err := s.indexer.Open()
	if err != nil {
		return fmt.Errorf("failed to open note index: %w", err)
	}
	s.index = index
	s.ready = true
	slog.Info("Note index ready", "path", s.indexer.Path())
	return nil
}

func (s *Service) folderLockPath(folder string) string {
	return filepath.Join(s.settings.BaseDir, "locks", FolderSlug(folder)+".lock")
}

func (s *Service) saveManifest() {
	if err := s.manifest.Save(filepath.Join(s.settings.BaseDir, ManifestFilename)); err != nil {
		slog.Error("Failed to save manifest", "error", err)
	}
}

// IsReady returns true if the note index is open for search.
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// GetIndex returns the note index for searching.
func (s *Service) GetIndex() (bleve.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ready || s.index == nil {
		return nil, ErrNotReady
	}
	return s.index, nil
}

// GetManifest returns the import manifest.
func (s *Service) GetManifest() *Manifest {
	return s.manifest
}

// GetSettings returns the service settings.
func (s *Service) GetSettings() *config.ImportSettings {
	return s.settings
}

// GetVault returns the vault notes are written to.
func (s *Service) GetVault() vault.Vault {
	return s.vault
}

// Close releases the note index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			return fmt.Errorf("failed to close index: %w", err)
		}
		s.index = nil
	}
	return nil
}
