package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/term"
)

// PipeName is the file name that indicates stdin is being used.
const PipeName = "-"

// Source is an opened image input: a local file, a downloaded URL or stdin.
type Source struct {
	io.Reader
	Name string

	close func() error
}

// Close releases the source, removing the temporary file of a download.
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSource opens an image given as a local path, an http(s) URL or "-" for stdin.
func OpenSource(ctx context.Context, src string) (*Source, error) {
	switch {
	case src == PipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return &Source{Reader: os.Stdin, Name: "stdin"}, nil

	case IsValidUrl(src):
		f, err := DownloadImage(ctx, src)
		if err != nil {
			return nil, err
		}
		name := "download"
		if u, err := url.Parse(src); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			name = path.Base(u.Path)
		}
		return &Source{Reader: f, Name: name, close: func() error {
			f.Close()
			return os.Remove(f.Name())
		}}, nil
	}

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("image not found: %s: %w", src, os.ErrNotExist)
		}
		return nil, fmt.Errorf("unable to open the source file: %w", err)
	}
	return &Source{Reader: f, Name: filepath.Base(src), close: f.Close}, nil
}
