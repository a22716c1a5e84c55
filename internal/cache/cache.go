// Package cache stores built sysroots, one per target.
//
// The layout under the cache root is the one rustc expects from a sysroot:
//
//	lib/rustlib/<target>/lib/*.rlib         runtime component libraries
//	lib/rustlib/<target>/fingerprint.json   the Entry that produced them
//
// An entry is never modified in place. Publish writes a complete replacement into
// .staging/, then swaps directories with two renames:
//
//  1. the current entry (if any) is renamed into .trash/
//  2. the staging directory is renamed into place
//
// A reader therefore sees the old entry, the new entry or, between the two renames,
// no entry at all (a miss). Lookup re-reads the record after checking the files so
// that a swap in the middle of a lookup is also reported as a miss.
//
// Publish events are recorded in a BoltDB ledger (cache.db) for the history command.
package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/xsys/internal/utils"
)

const (
	// recordFile is the name of the entry record inside a target directory
	recordFile = "fingerprint.json"

	libDirName     = "lib"
	stagingDirName = ".staging"
	trashDirName   = ".trash"
	locksDirName   = ".locks"
)

var (
	// ErrWriteFailed is returned when an entry could not be written; the previous entry is kept
	ErrWriteFailed = eris.New("failed to write cache entry")

	// ErrPartialWrite is returned when a staged entry does not match what was written
	ErrPartialWrite = eris.New("partial cache write detected")

	// ErrUnavailable is returned when the cache root cannot be used
	ErrUnavailable = eris.New("cache directory unavailable")

	// ErrInvalidKey is returned for target names that cannot name a cache directory
	ErrInvalidKey = eris.New("target name cannot be used as a cache key")
)

// Cache manages sysroots under a root directory
type Cache struct {
	root   string
	fs     afero.Fs
	log    zerolog.Logger
	ledger *ledger
}

// Option configures a Cache
type Option func(*Cache)

// WithFs replaces the filesystem used for entries; locks and the ledger always live on disk
func WithFs(fs afero.Fs) Option {
	return func(c *Cache) {
		c.fs = fs
	}
}

// WithLogger sets the logger used for misses and warnings
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.log = logger
	}
}

// New creates a cache rooted at root, creating the directory if needed
func New(root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, eris.Wrap(ErrUnavailable, "no cache directory configured")
	}

	c := &Cache{
		root:   root,
		fs:     afero.NewOsFs(),
		log:    zerolog.Nop(),
		ledger: &ledger{path: filepath.Join(root, ledgerFile)},
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure cache directory exists
	if err := c.fs.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "failed to create %s: %v", root, err)
	}

	return c, nil
}

// Root returns the cache root, which is also the sysroot passed to the compiler
func (c *Cache) Root() string {
	return c.root
}

// TargetDir returns the directory holding the entry of target
func (c *Cache) TargetDir(target string) string {
	return filepath.Join(c.root, "lib", "rustlib", target)
}

// Lookup returns the entry of target if it was built with fingerprint fp and is intact.
// Anything else, including an unreadable record or a missing library, is a miss.
func (c *Cache) Lookup(target, fp string) (*Entry, bool) {
	log := c.log.With().Str("target", target).Logger()

	if !utils.ValidTargetName(target) {
		log.Debug().Msg("cache miss: invalid target name")
		return nil, false
	}

	dir := c.TargetDir(target)

	entry, err := c.readEntry(dir)
	if err != nil {
		log.Debug().Err(err).Msg("cache miss: no readable entry")
		return nil, false
	}

	if reason := c.checkEntry(dir, target, fp, entry); reason != "" {
		log.Debug().Str("fingerprint", entry.Fingerprint).Msgf("cache miss: %s", reason)
		return nil, false
	}

	// The entry may have been swapped while its files were checked
	again, err := c.readEntry(dir)
	if err != nil || again.BuildID != entry.BuildID {
		log.Debug().Msg("cache miss: entry replaced during lookup")
		return nil, false
	}

	entry.Dir = dir

	return entry, true
}

func (c *Cache) checkEntry(dir, target, fp string, entry *Entry) string {
	if entry.Target != target {
		return "record belongs to " + entry.Target
	}

	if entry.Fingerprint != fp {
		return "fingerprint changed"
	}

	if len(entry.Artifacts) == 0 {
		return "record lists no artifacts"
	}

	for _, component := range entry.Components {
		if _, ok := entry.Artifacts[component]; !ok {
			return "no artifact for " + component
		}
	}

	for component, artifact := range entry.Artifacts {
		info, err := c.fs.Stat(filepath.Join(dir, libDirName, artifact.File))
		if err != nil {
			return "missing artifact for " + component
		}

		if info.Size() == 0 {
			return "empty artifact for " + component
		}

		if info.Size() != artifact.Size {
			return "artifact size changed for " + component
		}
	}

	return ""
}

func (c *Cache) readEntry(dir string) (*Entry, error) {
	data, err := afero.ReadFile(c.fs, filepath.Join(dir, recordFile))
	if err != nil {
		return nil, err
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, eris.Wrap(err, "corrupted record")
	}

	return &entry, nil
}

// Publish installs artifacts as the entry of target built with fingerprint fp.
// artifacts maps each component to the library file produced for it.
// On error the previous entry of target is left as it was.
func (c *Cache) Publish(ctx context.Context, target, fp string, artifacts map[string]string, info BuildInfo) (*Entry, error) {
	if !utils.ValidTargetName(target) {
		return nil, eris.Wrapf(ErrInvalidKey, "%q", target)
	}

	if len(artifacts) == 0 {
		return nil, eris.Wrap(ErrWriteFailed, "no artifacts to publish")
	}

	buildID := uuid.NewString()
	log := c.log.With().Str("target", target).Str("build_id", buildID).Logger()

	stagingDir := filepath.Join(c.root, stagingDirName, target+"-"+buildID)
	if err := c.fs.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "failed to create staging directory: %v", err)
	}

	published := false
	defer func() {
		if !published {
			if err := c.fs.RemoveAll(stagingDir); err != nil {
				log.Warn().Err(err).Msg("failed to remove staging directory")
			}
		}
	}()

	staged, err := StageArtifacts(ctx, c.fs, filepath.Join(stagingDir, libDirName), artifacts)
	if err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "%v", err)
	}

	entry := &Entry{
		Target:           target,
		Fingerprint:      fp,
		ToolchainVersion: info.ToolchainVersion,
		Flags:            append([]string{}, info.Flags...),
		Components:       append([]string{}, info.Components...),
		Artifacts:        staged,
		BuildID:          buildID,
		Timestamp:        time.Now().UTC(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "failed to encode record: %v", err)
	}

	if err := writeFile(c.fs, filepath.Join(stagingDir, recordFile), data); err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "failed to write record: %v", err)
	}

	if err := c.verifyStaged(stagingDir, entry, int64(len(data))); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "publish cancelled")
	}

	finalDir := c.TargetDir(target)
	if err := c.fs.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "failed to create %s: %v", filepath.Dir(finalDir), err)
	}

	trashDir, err := c.moveToTrash(finalDir, target+"-"+buildID)
	if err != nil {
		return nil, eris.Wrapf(ErrWriteFailed, "failed to retire previous entry: %v", err)
	}

	if err := c.fs.Rename(stagingDir, finalDir); err != nil {
		if trashDir != "" {
			if rerr := c.fs.Rename(trashDir, finalDir); rerr != nil {
				log.Error().Stack().Err(rerr).Str("trash", trashDir).Msg("failed to restore previous entry")
			}
		}

		return nil, eris.Wrapf(ErrWriteFailed, "failed to install entry: %v", err)
	}

	published = true

	if trashDir != "" {
		if err := c.fs.RemoveAll(trashDir); err != nil {
			log.Warn().Err(err).Msg("failed to remove previous entry")
		}
	}

	entry.Dir = finalDir

	c.record(Record{
		Action:           ActionPublish,
		Target:           target,
		Fingerprint:      fp,
		BuildID:          buildID,
		ToolchainVersion: info.ToolchainVersion,
		Flags:            entry.Flags,
		Timestamp:        entry.Timestamp,
	})

	log.Debug().Str("fingerprint", fp).Str("dir", finalDir).Msg("published sysroot")

	return entry, nil
}

// verifyStaged checks that every staged file has the size that was written
func (c *Cache) verifyStaged(stagingDir string, entry *Entry, recordSize int64) error {
	info, err := c.fs.Stat(filepath.Join(stagingDir, recordFile))
	if err != nil || info.Size() != recordSize {
		return eris.Wrap(ErrPartialWrite, "record")
	}

	for component, artifact := range entry.Artifacts {
		info, err := c.fs.Stat(filepath.Join(stagingDir, libDirName, artifact.File))
		if err != nil || info.Size() != artifact.Size || artifact.Size == 0 {
			return eris.Wrapf(ErrPartialWrite, "artifact for %s", component)
		}
	}

	return nil
}

// moveToTrash renames dir into the trash and returns its new location, or "" if dir does not exist
func (c *Cache) moveToTrash(dir, name string) (string, error) {
	if _, err := c.fs.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	trashRoot := filepath.Join(c.root, trashDirName)
	if err := c.fs.MkdirAll(trashRoot, 0o755); err != nil {
		return "", err
	}

	trashDir := filepath.Join(trashRoot, name)
	if err := c.fs.Rename(dir, trashDir); err != nil {
		return "", err
	}

	return trashDir, nil
}

// Invalidate removes the entry of target. A target without an entry is not an error.
func (c *Cache) Invalidate(target string) error {
	if !utils.ValidTargetName(target) {
		return eris.Wrapf(ErrInvalidKey, "%q", target)
	}

	id := uuid.NewString()

	trashDir, err := c.moveToTrash(c.TargetDir(target), target+"-"+id)
	if err != nil {
		return eris.Wrapf(ErrWriteFailed, "failed to invalidate %s: %v", target, err)
	}

	if trashDir == "" {
		return nil
	}

	if err := c.fs.RemoveAll(trashDir); err != nil {
		c.log.Warn().Err(err).Str("target", target).Msg("failed to remove invalidated entry")
	}

	c.record(Record{
		Action:    ActionInvalidate,
		Target:    target,
		BuildID:   id,
		Timestamp: time.Now().UTC(),
	})

	return nil
}

// Sweep removes staging and trash directories left behind by interrupted runs for target.
// Only call it while holding the target's lock.
func (c *Cache) Sweep(target string) {
	for _, dirName := range []string{stagingDirName, trashDirName} {
		parent := filepath.Join(c.root, dirName)

		entries, err := afero.ReadDir(c.fs, parent)
		if err != nil {
			continue
		}

		for _, e := range entries {
			if !ownedBy(e.Name(), target) {
				continue
			}

			path := filepath.Join(parent, e.Name())
			if err := c.fs.RemoveAll(path); err != nil {
				c.log.Warn().Err(err).Str("path", path).Msg("failed to remove leftover directory")
				continue
			}

			c.log.Debug().Str("path", path).Msg("removed leftover directory")
		}
	}
}

// ownedBy reports whether a staging or trash directory name was created for target
func ownedBy(name, target string) bool {
	rest, ok := strings.CutPrefix(name, target+"-")
	if !ok {
		return false
	}

	_, err := uuid.Parse(rest)

	return err == nil && len(rest) == 36
}

// List returns the entries present in the cache, sorted by target
func (c *Cache) List() ([]*Entry, error) {
	rustlib := filepath.Join(c.root, "lib", "rustlib")

	dirs, err := afero.ReadDir(c.fs, rustlib)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, eris.Wrapf(ErrUnavailable, "failed to read %s: %v", rustlib, err)
	}

	var entries []*Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}

		dir := filepath.Join(rustlib, d.Name())

		entry, err := c.readEntry(dir)
		if err != nil {
			entry = &Entry{Target: d.Name()}
		}

		entry.Dir = dir
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Target < entries[j].Target
	})

	return entries, nil
}

// Stats returns the number of entries and the total size of their files
func (c *Cache) Stats() (int, int64, error) {
	entries, err := c.List()
	if err != nil {
		return 0, 0, err
	}

	var totalSize int64
	for _, entry := range entries {
		err := afero.Walk(c.fs, entry.Dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip errors
			}

			if !info.IsDir() {
				totalSize += info.Size()
			}

			return nil
		})
		if err != nil {
			return 0, 0, err
		}
	}

	return len(entries), totalSize, nil
}

// Verify rehashes every artifact of the entry of target against its record
func (c *Cache) Verify(target string) error {
	if !utils.ValidTargetName(target) {
		return eris.Wrapf(ErrInvalidKey, "%q", target)
	}

	dir := c.TargetDir(target)

	entry, err := c.readEntry(dir)
	if err != nil {
		return eris.Wrapf(err, "no entry for %s", target)
	}

	for component, artifact := range entry.Artifacts {
		hash, err := HashFile(c.fs, filepath.Join(dir, libDirName, artifact.File))
		if err != nil {
			return eris.Wrapf(err, "failed to hash artifact for %s", component)
		}

		if hash != artifact.Hash {
			return eris.Errorf("artifact for %s does not match its record", component)
		}
	}

	return nil
}

// History returns the ledger records of target, or of every target when target is empty
func (c *Cache) History(target string) ([]Record, error) {
	return c.ledger.history(target)
}

// Clear removes every entry, all leftovers and the ledger history
func (c *Cache) Clear() error {
	for _, dir := range []string{"lib", stagingDirName, trashDirName} {
		if err := c.fs.RemoveAll(filepath.Join(c.root, dir)); err != nil {
			return eris.Wrapf(ErrWriteFailed, "failed to remove %s: %v", dir, err)
		}
	}

	if err := c.ledger.reset(); err != nil {
		return eris.Wrap(err, "failed to reset build ledger")
	}

	return nil
}

// record appends to the ledger; the ledger is informational so failures only warn
func (c *Cache) record(rec Record) {
	if err := c.ledger.append(rec); err != nil {
		c.log.Warn().Err(err).Str("target", rec.Target).Msg("failed to update build ledger")
	}
}
