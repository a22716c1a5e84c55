package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"
)

// maxParallelCopies bounds the number of artifacts copied at once
const maxParallelCopies = 4

// StageArtifacts copies every artifact into destDir and describes the copies.
// artifacts maps a component to the path of its library file.
func StageArtifacts(ctx context.Context, fs afero.Fs, destDir string, artifacts map[string]string) (map[string]Artifact, error) {
	components := make([]string, 0, len(artifacts))
	names := make(map[string]string, len(artifacts))

	for component, src := range artifacts {
		name := filepath.Base(src)
		if other, ok := names[name]; ok {
			return nil, fmt.Errorf("components %s and %s both produced %s", other, component, name)
		}

		names[name] = component
		components = append(components, component)
	}

	sort.Strings(components)

	if err := fs.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var mu sync.Mutex
	staged := make(map[string]Artifact, len(artifacts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCopies)

	for _, component := range components {
		src := artifacts[component]
		dst := filepath.Join(destDir, filepath.Base(src))

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			size, hash, err := copyFile(fs, src, dst)
			if err != nil {
				return fmt.Errorf("failed to copy %s: %w", component, err)
			}

			mu.Lock()
			staged[component] = Artifact{File: filepath.Base(dst), Size: size, Hash: hash}
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return staged, nil
}

// copyFile copies src to dst, returning the number of bytes written and their hash
func copyFile(fs afero.Fs, src, dst string) (int64, string, error) {
	srcFile, err := fs.Open(src)
	if err != nil {
		return 0, "", err
	}

	defer srcFile.Close()

	// Create parent directory if needed
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, "", err
	}

	dstFile, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, "", err
	}

	h := blake3.New(32, nil)

	n, err := io.Copy(io.MultiWriter(dstFile, h), srcFile)
	if err != nil {
		dstFile.Close()
		return 0, "", err
	}

	if err := dstFile.Sync(); err != nil {
		dstFile.Close()
		return 0, "", err
	}

	if err := dstFile.Close(); err != nil {
		return 0, "", err
	}

	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// writeFile writes data to path and flushes it to disk
func writeFile(fs afero.Fs, path string, data []byte) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
