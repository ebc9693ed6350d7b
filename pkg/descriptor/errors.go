package descriptor

import (
	"errors"
	"fmt"
)

// ErrDescriptorBuild marks every descriptor construction failure.
var ErrDescriptorBuild = errors.New("descriptor: build failed")

// BuildError describes a failed build. Index is the collection position of
// the failing item, or -1 outside collections. It unwraps to both
// ErrDescriptorBuild and the underlying cause.
type BuildError struct {
	Index  int
	Reason string
	Err    error
}

func (e *BuildError) Error() string {
	prefix := "descriptor: build"
	if e.Index >= 0 {
		prefix = fmt.Sprintf("descriptor: build item %d", e.Index)
	}
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("%s: %s: %v", prefix, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Reason)
	}
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDescriptorBuild}
	}
	return []error{ErrDescriptorBuild, e.Err}
}

func buildError(index int, reason string, err error) error {
	return &BuildError{Index: index, Reason: reason, Err: err}
}
