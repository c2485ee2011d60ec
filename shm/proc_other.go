//go:build !unix

package shm

import "errors"

func processAlive(int) bool { return false }

func terminateProcess(int) error { return errors.ErrUnsupported }
