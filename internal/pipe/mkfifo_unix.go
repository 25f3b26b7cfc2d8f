//go:build unix

package pipe

import (
	"errors"

	"golang.org/x/sys/unix"

	"tracktap/internal/services"
)

// Supported reports whether named pipes can be created on this platform.
func Supported() bool { return true }

func mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o600); err != nil {
		if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.EOPNOTSUPP) {
			return services.Wrap(services.ErrResource, "pipe", "mkfifo", UnsupportedHint, err)
		}
		return services.Wrap(services.ErrResource, "pipe", "mkfifo", path, err)
	}
	return nil
}
