//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package session

import "errors"

func lockFile(path string) (func(), error) {
	return nil, errors.New("session locking is not supported on this platform")
}
