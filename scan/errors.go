package scan

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed or inconsistent scan or model
// specification. It is fatal: validation runs before any image is
// simulated and a ConfigError aborts the whole run.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// Configf builds a ConfigError. Other packages use it to report
// specification problems in the same taxonomy as the resolver.
func Configf(format string, args ...any) *ConfigError {
	return configf(format, args...)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// Warning records a scan combination that could not satisfy its declared
// bounds. The combination is dropped, the warning is kept, and the run
// continues with the remaining points.
type Warning struct {
	Reason string
	// Xi is the requested autocorrelation length that had no feasible
	// geometry, in nm.
	Xi float64
	// Point is the rejected candidate that came closest to its declared
	// interval, for reporting.
	Point Point
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: xi=%g nm has no feasible geometry (closest candidate: moire=%g mm, z=%g mm, wavelength=%g Ang)",
		w.Reason, w.Xi, w.Point.Moire, w.Point.Z, w.Point.Wavelength)
}
