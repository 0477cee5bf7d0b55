package httpapi

import (
	"net/http"
	"os"
	"path"
	"strings"
)

// publicFS serves stored objects only: dotfiles such as in-progress uploads, lock files,
// directories and the keys listed in hidden are reported as missing.
type publicFS struct {
	root   http.Dir
	hidden map[string]bool
}

func newPublicFS(dir string, hidden []string) publicFS {
	fs := publicFS{root: http.Dir(dir), hidden: map[string]bool{}}
	for _, key := range hidden {
		fs.hidden[strings.TrimPrefix(path.Clean("/"+key), "/")] = true
	}
	return fs
}

func (fs publicFS) Open(name string) (http.File, error) {
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "" || fs.hidden[key] {
		return nil, os.ErrNotExist
	}
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return nil, os.ErrNotExist
		}
	}
	if strings.HasSuffix(key, ".lock") {
		return nil, os.ErrNotExist
	}

	f, err := fs.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
