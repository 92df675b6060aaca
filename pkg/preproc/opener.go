package preproc

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// Opener opens include candidates by path. An error means the candidate
// is not usable and the next search path directory is tried.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(name string) (io.ReadCloser, error)

// Open implements Opener.
func (f OpenerFunc) Open(name string) (io.ReadCloser, error) { return f(name) }

// OSOpener opens files on the local filesystem. Directories are reported
// as not found, so an empty include target never matches its directory.
func OSOpener() Opener {
	return OpenerFunc(func(name string) (io.ReadCloser, error) {
		f, err := os.Open(name) //nolint:gosec // G304: include paths come from the program being compiled
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if info.IsDir() {
			_ = f.Close()
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		return f, nil
	})
}

// FSOpener opens files from fsys. Candidate names are cleaned and made
// relative first, so a search path entry of "./" or "/lib/" works.
func FSOpener(fsys fs.FS) Opener {
	return OpenerFunc(func(name string) (io.ReadCloser, error) {
		clean := strings.TrimPrefix(path.Clean("/"+name), "/")
		if clean == "" {
			clean = "."
		}
		f, err := fsys.Open(clean)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if info.IsDir() {
			_ = f.Close()
			return nil, fmt.Errorf("open %s: %w", name, fs.ErrNotExist)
		}
		return f, nil
	})
}
