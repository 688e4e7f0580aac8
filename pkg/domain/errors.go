package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShapeViolation is the root of every error caused by a value or seed
// whose structure does not match what the caller or the schema declared.
var ErrShapeViolation = errors.New("shape violation")

// ErrKindMismatch is returned when a container of one kind is requested as another.
var ErrKindMismatch = fmt.Errorf("%w: kind mismatch", ErrShapeViolation)

// ErrUnknownName is returned when a top-level name is not declared by the document schema.
var ErrUnknownName = fmt.Errorf("%w: unknown name", ErrShapeViolation)

// ErrPrecondition is the root of every protocol contract violation.
var ErrPrecondition = errors.New("precondition violation")

// ErrContainerNotEmpty is returned when a seed is applied to a container that already holds content.
var ErrContainerNotEmpty = fmt.Errorf("%w: container not empty", ErrPrecondition)

// ErrRequiredKey is returned when deleting a key the schema declares as required.
var ErrRequiredKey = fmt.Errorf("%w: key is required", ErrPrecondition)

// ErrDuplicateName is returned when a document is built with two entries under one name.
var ErrDuplicateName = fmt.Errorf("%w: duplicate name", ErrPrecondition)

// ErrNotConstructed is returned by every accessor of a Document that was never built.
var ErrNotConstructed = errors.New("document not constructed")

// ErrKindConflict is returned by a runtime when a root name is fetched with a different kind
// than the one it was created with.
var ErrKindConflict = errors.New("root kind conflict")

// ErrAlreadyIntegrated is returned when inserting a container that already has a parent.
var ErrAlreadyIntegrated = errors.New("container already integrated")

// ErrIndexOutOfRange is returned by sequence operations with an invalid index or length.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrSnapshotNotFound is returned when a document ID cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ShapeError describes a shape violation at a specific path.
type ShapeError struct {
	Path     []string
	Expected string
	Actual   string
	Err      error // defaults to ErrShapeViolation
}

func (e *ShapeError) Error() string {
	var b strings.Builder
	b.WriteString("shape violation")
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	fmt.Fprintf(&b, ": expected %s", e.Expected)
	if e.Actual != "" {
		fmt.Fprintf(&b, ", got %s", e.Actual)
	}
	return b.String()
}

func (e *ShapeError) Unwrap() error {
	if e.Err == nil {
		return ErrShapeViolation
	}
	return e.Err
}

// PreconditionError describes a protocol contract violated by an operation.
type PreconditionError struct {
	Op   string
	Path []string
	Err  error // one of the ErrPrecondition family
}

func (e *PreconditionError) Error() string {
	where := ""
	if len(e.Path) > 0 {
		where = " " + strings.Join(e.Path, ".")
	}
	return fmt.Sprintf("%s%s: %v", e.Op, where, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Mismatch builds a ShapeError for a kind mismatch.
func Mismatch(path []string, expected, actual Kind) *ShapeError {
	return &ShapeError{
		Path:     path,
		Expected: expected.String(),
		Actual:   actual.String(),
		Err:      ErrKindMismatch,
	}
}

// JoinPath returns a new path with elem appended, leaving path untouched.
func JoinPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

// ErrDocumentExists is returned when creating a document under an ID that is already stored.
var ErrDocumentExists = errors.New("document already exists")
