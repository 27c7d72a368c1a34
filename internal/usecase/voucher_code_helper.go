package usecase

import (
	"crypto/rand"
	"io"

	"bytebill/internal/domain/model"
)

// generateVoucherCode creates a secure, random, and human-readable voucher code.
// 12 symbols from a 32 character alphabet give 60 bits of entropy; 256 is a
// multiple of 32 so the modulo carries no bias.
func generateVoucherCode() (string, error) {
	const chars = model.VoucherAlphabet
	const codeLength = model.VoucherCodeLength

	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := 0; i < codeLength; i++ {
		buffer[i] = chars[int(buffer[i])%len(chars)]
	}
	return string(buffer), nil
}
