package values

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// SequenceNumber represents a monotonic sequence number for audit entries
type SequenceNumber struct {
	value uint64
}

const (
	// Maximum sequence number value (2^63 - 1 for safe database storage)
	MaxSequenceNumber = uint64(9223372036854775807)
	// Minimum sequence number value
	MinSequenceNumber = uint64(1)
)

// NewSequenceNumber creates a new SequenceNumber value object with validation
func NewSequenceNumber(value uint64) (SequenceNumber, error) {
	if value == 0 {
		return SequenceNumber{}, errors.NewValidationError("ZERO_SEQUENCE",
			"sequence number cannot be zero")
	}

	if value > MaxSequenceNumber {
		return SequenceNumber{}, errors.NewValidationError("SEQUENCE_TOO_LARGE",
			fmt.Sprintf("sequence number %d exceeds maximum %d", value, MaxSequenceNumber))
	}

	return SequenceNumber{value: value}, nil
}

// Value returns the sequence number value
func (s SequenceNumber) Value() uint64 {
	return s.value
}

// String returns the string representation of the sequence number
func (s SequenceNumber) String() string {
	return strconv.FormatUint(s.value, 10)
}

// IsZero checks if the sequence number is zero (invalid state)
func (s SequenceNumber) IsZero() bool {
	return s.value == 0
}

// SequenceGenerator provides thread-safe sequence number generation
type SequenceGenerator struct {
	current uint64
	mutex   sync.Mutex
}

// NewSequenceGenerator creates a new sequence generator starting from the given value
func NewSequenceGenerator(start uint64) (*SequenceGenerator, error) {
	if start == 0 {
		start = MinSequenceNumber
	}

	if start > MaxSequenceNumber {
		return nil, errors.NewValidationError("INVALID_START_SEQUENCE",
			"start sequence number exceeds maximum")
	}

	return &SequenceGenerator{
		current: start - 1, // Subtract 1 so first Next() call returns start
	}, nil
}

// Next generates the next sequence number (thread-safe)
func (sg *SequenceGenerator) Next() (SequenceNumber, error) {
	sg.mutex.Lock()
	defer sg.mutex.Unlock()

	if sg.current >= MaxSequenceNumber {
		return SequenceNumber{}, errors.NewValidationError("SEQUENCE_EXHAUSTED",
			"sequence generator has reached maximum value")
	}

	sg.current++
	return SequenceNumber{value: sg.current}, nil
}
