package cookies

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cookiescraper/internal/components/assert"

	"github.com/spf13/afero"
)

var (
	ErrNotFound = errors.New("cookie file not found")
	ErrLoad     = errors.New("cookie file load error")
	ErrSave     = errors.New("cookie file save error")
)

// File is a Netscape cookie file on a filesystem.
type File struct {
	fs   afero.Fs
	path string
}

func NewFile(fs afero.Fs, path string) File {
	assert.NotNil(fs)
	assert.NotEmptyStr(path)
	return File{fs: fs, path: path}
}

func (f File) Path() string {
	return f.path
}

func (f File) Exists() bool {
	ok, err := afero.Exists(f.fs, f.path)
	return ok && err == nil
}

// Load reads the cookies in the file. Errors wrap ErrNotFound when the file does not exist
// and ErrLoad for anything else.
func (f File) Load() ([]Cookie, error) {
	contents, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, f.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, f.path, err)
	}

	cookies, err := ParseNetscape(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, f.path, err)
	}
	return cookies, nil
}

// Save overwrites the file with the given cookies. The file is replaced atomically so a failed
// save never leaves a truncated cookie file behind. Errors wrap ErrSave.
func (f File) Save(cookies []Cookie) error {
	saveError := func(err error) error {
		return fmt.Errorf("%w: %s: %w", ErrSave, f.path, err)
	}

	var buff bytes.Buffer
	err := WriteNetscape(&buff, cookies)
	if err != nil {
		return saveError(err)
	}

	tmp, err := afero.TempFile(f.fs, filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return saveError(err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(buff.Bytes())
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		f.fs.Remove(tmpName)
		return saveError(err)
	}

	err = f.fs.Rename(tmpName, f.path)
	if err != nil {
		f.fs.Remove(tmpName)
		return saveError(err)
	}
	return nil
}
