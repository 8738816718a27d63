//go:build cgo

package store

// Open returns a KuzuStore at path, or an in-memory KuzuStore when path is
// empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewKuzuStore()
	}
	return NewKuzuFileStore(path)
}
