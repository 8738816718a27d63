//go:build !cgo

package store

import "fmt"

// Open returns a MemStore. Persistent stores need a cgo build.
func Open(path string) (Store, error) {
	if path != "" {
		return nil, fmt.Errorf("store: %s: persistent store requires a cgo build", path)
	}
	return NewMemStore(), nil
}
