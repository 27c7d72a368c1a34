package model

import (
	"strings"

	"bytebill/internal/domain"
)

const (
	// VoucherAlphabet avoids look-alike characters (O/0, I/1).
	VoucherAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	VoucherCodeLength = 12
)

// NormalizeVoucherCode accepts user input such as "abcd-efgh 2345" and returns the
// canonical 12 character code.
func NormalizeVoucherCode(in string) (string, error) {
	var b strings.Builder
	b.Grow(VoucherCodeLength)
	for _, r := range strings.ToUpper(in) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case r < 128 && strings.IndexByte(VoucherAlphabet, byte(r)) >= 0:
			b.WriteRune(r)
		default:
			return "", domain.ErrMalformedCode
		}
	}
	if b.Len() != VoucherCodeLength {
		return "", domain.ErrMalformedCode
	}
	return b.String(), nil
}

func FormatVoucherCode(code string) string {
	if len(code) != VoucherCodeLength {
		return code
	}
	return code[0:4] + "-" + code[4:8] + "-" + code[8:12]
}
