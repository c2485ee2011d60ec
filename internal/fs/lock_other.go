//go:build !unix

package fs

import "errors"

// Lock is not supported on this platform.
func Lock(path string) (func() error, error) {
	return nil, errors.ErrUnsupported
}
