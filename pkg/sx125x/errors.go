package sx125x

import (
	"errors"
	"fmt"
)

var (
	// ErrLockFailed indicates the PLL did not lock within MaxLockAttempts
	ErrLockFailed = errors.New("PLL failed to lock")

	// ErrAddressRange indicates a radio register beyond the SPI master's reach
	ErrAddressRange = errors.New("radio register address out of range")
)

// LockError reports a lock failure on one front-end. It matches ErrLockFailed.
type LockError struct {
	FrontEnd    int
	FrequencyHz uint32
	Attempts    int
}

func (e *LockError) Error() string {
	return fmt.Sprintf("front-end %d: %v at %d Hz after %d attempts", e.FrontEnd, ErrLockFailed, e.FrequencyHz, e.Attempts)
}

func (e *LockError) Is(target error) bool {
	return target == ErrLockFailed
}
