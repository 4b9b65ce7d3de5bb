// Package store implements the on-disk configuration document: atomic
// writes, SHA-256 fingerprinting, timestamped backups and an advisory
// lock file.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/internal/clock"
	"github.com/sa6mwa/ejreconcile/internal/loggingutil"
	"pkt.systems/pslog"
)

const (
	primaryName = "userdb.edn"
	swapName    = "userdb.swp.edn"
	lockName    = "userdb.edn.lock"
	backupDir   = "backup"
	omemoDir    = "omemo"
)

// Config configures a Store.
type Config struct {
	// Folder is the directory holding the primary document, its lock file,
	// and the backup/ and omemo/ subtrees. Required.
	Folder string
	// Clock abstracts time for lock expiry and backup filenames. Defaults
	// to clock.Real{}.
	Clock clock.Clock
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger pslog.Logger
}

// Store is the on-disk configuration document store.
type Store struct {
	folder string
	clock  clock.Clock
	logger pslog.Logger
}

// Open prepares the store's directory layout, seeding a default document
// if the primary file is missing.
func Open(cfg Config) (*Store, error) {
	if cfg.Folder == "" {
		return nil, fmt.Errorf("store: folder required")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real{}
	}
	s := &Store{
		folder: cfg.Folder,
		clock:  c,
		logger: loggingutil.EnsureLogger(cfg.Logger).With("component", "store"),
	}
	if err := os.MkdirAll(s.folder, 0o755); err != nil {
		return nil, fmt.Errorf("store: prepare folder %q: %w", s.folder, err)
	}
	if err := os.MkdirAll(filepath.Join(s.folder, backupDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: prepare backup folder: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.folder, omemoDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: prepare omemo folder: %w", err)
	}
	if _, err := os.Stat(s.primaryPath()); os.IsNotExist(err) {
		s.logger.Info("store.seed_default", "path", s.primaryPath())
		if _, err := s.Write(DefaultDocument()); err != nil {
			return nil, fmt.Errorf("store: seed default document: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("store: stat primary document: %w", err)
	}
	return s, nil
}

func (s *Store) primaryPath() string { return filepath.Join(s.folder, primaryName) }
func (s *Store) swapPath() string    { return filepath.Join(s.folder, swapName) }
func (s *Store) lockPath() string    { return filepath.Join(s.folder, lockName) }

// Folder returns the directory this store is rooted at.
func (s *Store) Folder() string { return s.folder }

// CurrentSHA returns the SHA-256 fingerprint of the primary file's current
// bytes, without parsing or validating its contents.
func (s *Store) CurrentSHA() (string, error) {
	raw, err := os.ReadFile(s.primaryPath())
	if err != nil {
		return "", fmt.Errorf("store: read primary document: %w", err)
	}
	return fingerprint(raw), nil
}

// Read loads, validates and returns the document together with the SHA-256
// of the bytes it was parsed from. The returned document carries that SHA
// in FileSHA256.
func (s *Store) Read() (document.Document, string, error) {
	raw, err := os.ReadFile(s.primaryPath())
	if err != nil {
		return document.Document{}, "", fmt.Errorf("store: read primary document: %w", err)
	}
	sha := fingerprint(raw)
	doc, err := document.ParseAndValidate(raw)
	if err != nil {
		return document.Document{}, sha, err
	}
	doc.FileSHA256 = sha
	return doc, sha, nil
}

// Write validates d, strips any attached SHA, creates a timestamped backup
// of the current primary file (if one exists), then atomically replaces
// the primary file with the canonical serialization of d. It returns d
// with its FileSHA256 refreshed to match the bytes just written.
func (s *Store) Write(d document.Document) (document.Document, error) {
	d = d.WithoutSHA()
	if err := document.Validate(d); err != nil {
		return document.Document{}, err
	}

	payload, err := marshalCanonical(d)
	if err != nil {
		return document.Document{}, fmt.Errorf("store: encode document: %w", err)
	}

	if err := s.backupCurrent(); err != nil {
		return document.Document{}, err
	}
	if err := writeFileAtomic(s.swapPath(), s.primaryPath(), payload); err != nil {
		return document.Document{}, fmt.Errorf("store: write primary document: %w", err)
	}

	d.FileSHA256 = fingerprint(payload)
	s.logger.Debug("store.write.success", "sha256", d.FileSHA256)
	return d, nil
}

func (s *Store) backupCurrent() error {
	raw, err := os.ReadFile(s.primaryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read primary document for backup: %w", err)
	}
	name := fmt.Sprintf("userdb%d.edn", s.clock.Now().UnixMilli())
	dest := filepath.Join(s.folder, backupDir, name)
	if err := writeFileAtomic(dest+".tmp", dest, raw); err != nil {
		return fmt.Errorf("store: write backup: %w", err)
	}
	return nil
}

func fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func marshalCanonical(d document.Document) ([]byte, error) {
	buf, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// writeFileAtomic stages payload at tmpPath, fsyncs it, renames it onto
// dest, then fsyncs dest's parent directory.
func writeFileAtomic(tmpPath, dest string, payload []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// DefaultDocument returns the compiled-in document seeded when the primary
// file is missing: the two mandatory groups and nothing else.
func DefaultDocument() document.Document {
	return document.Document{
		Groups: document.Groups{
			document.GroupOwner: "Owner",
			document.GroupBot:   "Bot",
		},
		Rooms:   []document.Room{},
		Members: []document.Member{},
		Tracking: document.Tracking{
			ManagedMembers: document.NewStringSet(),
			ManagedRooms:   document.NewStringSet(),
			ManagedGroups:  document.NewGroupSet(),
		},
	}
}
