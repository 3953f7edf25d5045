package ca

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// MinSerialBytes is the smallest accepted serial length. RFC 5280 caps
// serials at 20 octets; CA/B Forum requires 64 bits of entropy.
const MinSerialBytes = 8

// DefaultSerialBytes is the serial length used by New.
const DefaultSerialBytes = 16

// GenerateSerial returns a positive random serial built from n bytes of
// entropy. The top bit is cleared so the DER INTEGER stays positive
// without a padding byte, and an all-zero draw is retried.
//
// Serials are not recorded, so concurrent issuance under one issuer carries
// a negligible but non-zero collision probability.
func GenerateSerial(random io.Reader, n int) (*big.Int, error) {
	if n < MinSerialBytes {
		return nil, fmt.Errorf("%w: serial must be at least %d bytes, got %d", ErrValidation, MinSerialBytes, n)
	}
	if n > 20 {
		return nil, fmt.Errorf("%w: serial must be at most 20 bytes, got %d", ErrValidation, n)
	}
	if random == nil {
		random = rand.Reader
	}
	buf := make([]byte, n)
	for {
		if _, err := io.ReadFull(random, buf); err != nil {
			return nil, fmt.Errorf("failed to read serial entropy: %w", err)
		}
		buf[0] &= 0x7f
		serial := new(big.Int).SetBytes(buf)
		if serial.Sign() > 0 {
			return serial, nil
		}
	}
}
