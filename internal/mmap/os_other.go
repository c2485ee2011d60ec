//go:build !unix

package mmap

import (
	"errors"
	"os"
)

func osMap(*os.File, int, bool) ([]byte, func([]byte) error, error) {
	return nil, nil, errors.ErrUnsupported
}

func osSync([]byte) error { return errors.ErrUnsupported }

func osAdviseSequential([]byte) {}
