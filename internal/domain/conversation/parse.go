package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"shrinkbot/internal/domain/compression"
	"shrinkbot/pkg/errors"
)

// InvalidSizeMessage is shown for any size text that cannot be parsed
const InvalidSizeMessage = "Invalid size format. Please use KB, MB, or MiB (e.g., 500KB, 2MB, 1MiB)."

// suffix order matters: KB, then MB, then MIB
var sizeSuffixes = []struct {
	suffix string
	unit   compression.SizeUnit
}{
	{"KB", compression.UnitKB},
	{"MB", compression.UnitMB},
	{"MIB", compression.UnitMiB},
}

// ParseSize parses "<int><KB|MB|MiB>", case-insensitive, optional whitespace before the unit
func ParseSize(text string) (SizeTarget, error) {
	upper := strings.ToUpper(strings.TrimSpace(text))

	for _, s := range sizeSuffixes {
		if !strings.HasSuffix(upper, s.suffix) {
			continue
		}

		number := strings.TrimSpace(strings.TrimSuffix(upper, s.suffix))
		n, err := strconv.Atoi(number)
		if err != nil || n <= 0 {
			return SizeTarget{}, errors.NewValidationError(errors.ErrInvalidSize, "size", InvalidSizeMessage, text)
		}
		return SizeTarget{Size: n, Unit: s.unit}, nil
	}

	return SizeTarget{}, errors.NewValidationError(errors.ErrInvalidSize, "size", InvalidSizeMessage, text)
}

// ParseQuality parses an integer quality in [1,95]
func ParseQuality(text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	q, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, errors.NewValidationError(errors.ErrInvalidQuality, "quality",
			fmt.Sprintf("invalid quality %q: not an integer", trimmed), text)
	}
	if q < compression.MinQuality || q > compression.MaxQuality {
		return 0, errors.NewValidationError(errors.ErrInvalidQuality, "quality",
			fmt.Sprintf("Quality must be between %d and %d.", compression.MinQuality, compression.MaxQuality), q)
	}
	return q, nil
}
