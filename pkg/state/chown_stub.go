//go:build !linux
// +build !linux

package state

import "fmt"

// chownTree is a stub on non-Linux platforms; ownership mapping is handled
// by the container runtime there (Docker Desktop and the like).
func chownTree(_ string, _, _ int) error {
	return fmt.Errorf("ownership adjustment is only supported on Linux")
}
