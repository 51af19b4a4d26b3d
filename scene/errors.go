package scene

import (
	"errors"
	"fmt"
)

// PhysicsError reports an evaluator failure for one ROI's model. It is
// fatal for the measurement point being rendered; the run continues with
// the remaining points.
type PhysicsError struct {
	Label int
	Model string
	Err   error
}

func (e *PhysicsError) Error() string {
	return fmt.Sprintf("physics evaluation failed for ROI %d (%s): %v", e.Label, e.Model, e.Err)
}

func (e *PhysicsError) Unwrap() error { return e.Err }

// IsPhysics reports whether err is (or wraps) a PhysicsError.
func IsPhysics(err error) bool {
	var p *PhysicsError
	return errors.As(err, &p)
}

// ShapeError reports a mask/thickness dimension mismatch. Fatal.
type ShapeError struct {
	Msg string
}

func (e *ShapeError) Error() string { return e.Msg }

func shapef(format string, args ...any) *ShapeError {
	return &ShapeError{Msg: fmt.Sprintf(format, args...)}
}
