package cache

import (
	"io/fs"
	"strconv"

	"github.com/debemdeboas/backoffice/internal/util"
)

var staticCache = NewCache[string, string]()

// HashStatic fingerprints every file under dir in fsys and returns how many
// were hashed. Paths are stored as served, with a leading slash.
func HashStatic(fsys fs.FS, dir string) (int, error) {
	var n int
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		staticCache.Set("/"+path, strconv.Quote(util.ContentHash(data)[:16]))
		n++
		return nil
	})
	return n, err
}

// StaticETag returns the quoted ETag of a hashed asset.
func StaticETag(path string) (string, bool) {
	return staticCache.Get(path)
}
