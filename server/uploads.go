package server

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// UploadStore keeps a copy of every uploaded image on disk.
type UploadStore struct {
	dir string
}

// NewUploadStore creates dir if needed.
func NewUploadStore(dir string) (*UploadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create the upload directory %v", dir)
	}
	return &UploadStore{dir: dir}, nil
}

// Dir returns the directory uploads are written to.
func (u *UploadStore) Dir() string {
	return u.dir
}

// Save writes data under a sanitized version of name and returns the final path.
// The file is written to a temporary name first and renamed into place, so a
// reader never sees a partial file. An existing file with the same name is replaced.
func (u *UploadStore) Save(name string, data []byte) (string, error) {
	path := filepath.Join(u.dir, secureFilename(name))

	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "could not create a temporary upload file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "could not write the upload")
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrap(err, "could not move the upload into place")
	}
	return path, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// secureFilename reduces a client supplied name to a flat ASCII file name that
// cannot escape the upload directory.
func secureFilename(name string) string {
	name = norm.NFKD.String(name)
	ascii := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] < 0x80 {
			ascii = append(ascii, name[i])
		}
	}
	name = string(ascii)

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name == "" {
		return "upload"
	}
	return name
}
