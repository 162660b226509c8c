package sweep

import "errors"

// Sweep errors
var (
	// ErrFrequencyTooLow indicates a sweep bound below MinFrequencyHz
	ErrFrequencyTooLow = errors.New("frequency too low")

	// ErrFrequencyTooHigh indicates a sweep bound above MaxFrequencyHz
	ErrFrequencyTooHigh = errors.New("frequency too high")

	// ErrUnknownFrontEnd indicates a sweep range no single radio variant covers
	ErrUnknownFrontEnd = errors.New("unknown front end")

	// ErrInvalidRange indicates fmax below fmin or a zero step
	ErrInvalidRange = errors.New("invalid sweep range")

	// ErrInvalidCapture indicates a zero capture count or capture period
	ErrInvalidCapture = errors.New("invalid capture settings")

	// ErrFirmwareSize indicates an AGC firmware image of the wrong size
	ErrFirmwareSize = errors.New("AGC firmware image has the wrong size")

	// ErrShortCapture indicates a capture RAM burst shorter than requested
	ErrShortCapture = errors.New("short capture RAM read")
)
