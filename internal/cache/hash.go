package cache

import (
	"encoding/hex"
	"io"

	"github.com/spf13/afero"
	"lukechampine.com/blake3"
)

// HashFile creates a hash of a file's content
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
