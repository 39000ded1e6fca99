// Package verification verifies captured chip images against a reference.
package verification

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

const maxLoggedMismatches = 10

// ErrMismatch is returned when the capture differs from the reference.
var ErrMismatch = errors.New("capture does not match reference")

// Result describes the differences between a capture and its reference.
type Result struct {
	Size       int
	Mismatches int
	First      []int // addresses of the first mismatches
}

// Matched returns whether the capture matched the reference.
func (r Result) Matched() bool {
	return r.Mismatches == 0
}

// VerifyImage compares the captured image with the reference image. The
// first mismatching addresses are logged.
func VerifyImage(logger *log.Logger, reference, captured []byte) (Result, error) {
	result, err := checkBufferEqual(logger, reference, captured)
	if err != nil {
		return result, fmt.Errorf("verifying image: %w", err)
	}
	return result, nil
}

// VerifyTable compares a captured PLA truth table against a reference table,
// only the output bits selected by the mask are compared.
func VerifyTable(logger *log.Logger, reference, captured []byte, mask byte) (Result, error) {
	ref := make([]byte, len(reference))
	for i, b := range reference {
		ref[i] = b & mask
	}
	got := make([]byte, len(captured))
	for i, b := range captured {
		got[i] = b & mask
	}

	result, err := checkBufferEqual(logger, ref, got)
	if err != nil {
		return result, fmt.Errorf("verifying truth table: %w", err)
	}
	return result, nil
}

func checkBufferEqual(logger *log.Logger, input, output []byte) (Result, error) {
	result := Result{Size: len(input)}
	if len(input) != len(output) {
		return result, fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	for i := range input {
		if input[i] == output[i] {
			continue
		}

		result.Mismatches++
		if result.Mismatches <= maxLoggedMismatches {
			result.First = append(result.First, i)
			logger.Error("Address mismatch",
				log.Hex("address", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if result.Mismatches == 0 {
		return result, nil
	}
	return result, fmt.Errorf("%w: %d address mismatches", ErrMismatch, result.Mismatches)
}
