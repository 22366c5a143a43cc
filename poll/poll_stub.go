//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

// File: poll/poll_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub poll driver for platforms without poll(2).

package poll

import (
	"fmt"

	"github.com/momentics/sigcore/api"
)

func wait(descs []Descriptor, timeoutMs int) (int, error) {
	return 0, fmt.Errorf("poll: not available on this platform: %w", api.ErrNotSupported)
}
