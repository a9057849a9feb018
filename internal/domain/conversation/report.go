package conversation

import (
	"github.com/shopspring/decimal"
)

var bytesPerKB = decimal.NewFromInt(1024)

// Report holds the figures shown after a successful compression, already rounded to two decimals
type Report struct {
	OriginalKB   string
	CompressedKB string
	Ratio        string
}

// NewReport renders both sizes in KB and the original/compressed ratio
func NewReport(originalBytes, compressedBytes int64) *Report {
	orig := decimal.NewFromInt(originalBytes)
	comp := decimal.NewFromInt(compressedBytes)

	ratio := decimal.Zero
	if !comp.IsZero() {
		ratio = orig.DivRound(comp, 2)
	}

	return &Report{
		OriginalKB:   kilobytes(orig),
		CompressedKB: kilobytes(comp),
		Ratio:        ratio.StringFixed(2),
	}
}

// kilobytes formats n/1024, which is exact, with ties rounded to even
func kilobytes(n decimal.Decimal) string {
	return n.Div(bytesPerKB).RoundBank(2).StringFixed(2)
}
