//go:build !unix

package pipe

import "tracktap/internal/services"

// Supported reports whether named pipes can be created on this platform.
func Supported() bool { return false }

func mkfifo(string) error {
	return services.Wrap(services.ErrResource, "pipe", "mkfifo", UnsupportedHint, nil)
}
