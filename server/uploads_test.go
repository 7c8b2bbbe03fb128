package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploads_SecureFilename(t *testing.T) {
	testCases := map[string]string{
		"photo.jpg":                  "photo.jpg",
		"My cool movie.mov":          "My_cool_movie.mov",
		"../../../etc/passwd":        "etc_passwd",
		`..\..\windows\win.ini`:      "windows_win.ini",
		"i contain cool ümläuts.txt": "i_contain_cool_umlauts.txt",
		"café.png":                   "cafe.png",
		"...":                        "upload",
		"":                           "upload",
		".hidden":                    "hidden",
	}
	for in, want := range testCases {
		assert.Equal(t, want, secureFilename(in), "secureFilename(%q)", in)
	}
}

func TestUploads_SaveShouldReplaceAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	u, err := NewUploadStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, u.Dir())

	path, err := u.Save("face.png", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "face.png"), path)

	_, err = u.Save("face.png", []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file should be left behind")
}
