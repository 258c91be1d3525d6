package core

import (
	"errors"
)

var (
	// Transient surface/device conditions. Acquiring the next swapchain image
	// recovers from these with a swapchain rebuild and a retry.
	ErrSurfaceLost             = errors.New("surface lost")
	ErrDeviceLost              = errors.New("device lost")
	ErrSwapchainOutOfDate      = errors.New("swapchain out of date")
	ErrFullScreenExclusiveLost = errors.New("full-screen exclusive mode lost")

	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	ErrUnknown          = errors.New("unknown")
)

// IsTransientAcquireError reports whether a failed swapchain image acquisition
// should be handled with a swapchain rebuild and retry. Any other failure
// aborts the acquisition for that window this frame and is reported instead.
func IsTransientAcquireError(err error) bool {
	return errors.Is(err, ErrSurfaceLost) ||
		errors.Is(err, ErrDeviceLost) ||
		errors.Is(err, ErrSwapchainOutOfDate) ||
		errors.Is(err, ErrFullScreenExclusiveLost)
}
