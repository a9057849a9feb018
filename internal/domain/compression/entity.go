package compression

import (
	"fmt"
	"os"
	"sync"

	"shrinkbot/pkg/errors"
)

// Quality bounds accepted from users
const (
	MinQuality = 1
	MaxQuality = 95
)

// SizeUnit is the unit a target size is expressed in
type SizeUnit string

const (
	UnitKB  SizeUnit = "KB"
	UnitMB  SizeUnit = "MB"
	UnitMiB SizeUnit = "MiB"
)

// Valid checks if unit is one of the supported units
func (u SizeUnit) Valid() bool {
	switch u {
	case UnitKB, UnitMB, UnitMiB:
		return true
	}
	return false
}

// Divisor returns the number of bytes in one unit.
// MB and MiB intentionally share 1024*1024; only the label differs.
func (u SizeUnit) Divisor() int64 {
	switch u {
	case UnitKB:
		return 1024
	case UnitMB, UnitMiB:
		return 1024 * 1024
	}
	return 0
}

func (u SizeUnit) String() string {
	return string(u)
}

// ThresholdMet reports whether an encoding of size bytes is at most target units
func ThresholdMet(size int64, target int, unit SizeUnit) bool {
	d := unit.Divisor()
	if d == 0 {
		return false
	}
	return size <= int64(target)*d
}

// Request is a single compression job, built once a valid quality is received
type Request struct {
	Source       []byte
	TargetSize   int
	Unit         SizeUnit
	StartQuality int
}

// Validate checks request invariants before any encode happens
func (r Request) Validate() error {
	if r.TargetSize <= 0 {
		return errors.Wrapf(errors.ErrInvalidSize, "target size must be positive, got %d", r.TargetSize)
	}
	if !r.Unit.Valid() {
		return errors.Wrapf(errors.ErrInvalidSize, "unknown unit %q", r.Unit)
	}
	if r.StartQuality < MinQuality || r.StartQuality > MaxQuality {
		return errors.NewValidationError(errors.ErrInvalidQuality, "quality",
			fmt.Sprintf("Quality must be between %d and %d.", MinQuality, MaxQuality), r.StartQuality)
	}
	if len(r.Source) == 0 {
		return errors.WithKind(errors.New("source image is empty"), errors.ErrCodec)
	}
	return nil
}

// Result describes the encoding chosen by the engine
type Result struct {
	Output       *Output
	FinalQuality int
	FinalSize    int64
	OriginalSize int64
	Iterations   int
	TargetMet    bool
}

// Ratio returns original/compressed size
func (r *Result) Ratio() float64 {
	if r.FinalSize == 0 {
		return 0
	}
	return float64(r.OriginalSize) / float64(r.FinalSize)
}

// Output is the scoped temporary file holding the encoded image.
// The component that requested compression owns it and must call Release.
type Output struct {
	path string
	once sync.Once
	err  error
}

// NewOutput wraps an existing temp file path
func NewOutput(path string) *Output {
	return &Output{path: path}
}

// Path returns the temp file location
func (o *Output) Path() string {
	return o.path
}

// Bytes reads the encoded image
func (o *Output) Bytes() ([]byte, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read compressed output")
	}
	return data, nil
}

// Release deletes the temp file. Safe to call more than once.
func (o *Output) Release() error {
	if o == nil {
		return nil
	}
	o.once.Do(func() {
		if err := os.Remove(o.path); err != nil && !os.IsNotExist(err) {
			o.err = errors.Wrap(err, "failed to remove compressed output")
		}
	})
	return o.err
}
