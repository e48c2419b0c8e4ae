package values

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// TensorDimensions is the fixed dimensionality of an incident position vector
const TensorDimensions = 13

// maxTensorDistance is the largest possible Euclidean distance between two
// positions whose components all lie in [0,1]: sqrt(13)
var maxTensorDistance = math.Sqrt(float64(TensorDimensions))

// TensorPosition is a fixed-length feature vector characterizing an incident
// for similarity search. Every component lies in [0,1]. The zero value (all
// components 0) marks an incident that has not been assessed yet.
type TensorPosition struct {
	components [TensorDimensions]float64
}

// NewTensorPosition creates a TensorPosition from a slice with validation
func NewTensorPosition(components []float64) (TensorPosition, error) {
	if len(components) != TensorDimensions {
		return TensorPosition{}, errors.NewValidationError("INVALID_TENSOR_DIMENSIONS",
			fmt.Sprintf("tensor position requires exactly %d components, got %d",
				TensorDimensions, len(components)))
	}

	var p TensorPosition
	for i, c := range components {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return TensorPosition{}, errors.NewValidationError("INVALID_TENSOR_COMPONENT",
				fmt.Sprintf("component %d is not a finite number", i))
		}
		if c < 0 || c > 1 {
			return TensorPosition{}, errors.NewValidationError("TENSOR_COMPONENT_OUT_OF_RANGE",
				fmt.Sprintf("component %d value %f is outside [0,1]", i, c))
		}
		p.components[i] = c
	}

	return p, nil
}

// MustNewTensorPosition creates a TensorPosition and panics on error (for tests)
func MustNewTensorPosition(components []float64) TensorPosition {
	p, err := NewTensorPosition(components)
	if err != nil {
		panic(err)
	}
	return p
}

// ZeroTensorPosition returns the unassessed (all-zero) position
func ZeroTensorPosition() TensorPosition {
	return TensorPosition{}
}

// Components returns a copy of the component vector
func (p TensorPosition) Components() []float64 {
	out := make([]float64, TensorDimensions)
	copy(out, p.components[:])
	return out
}

// Component returns the component at index i
func (p TensorPosition) Component(i int) (float64, error) {
	if i < 0 || i >= TensorDimensions {
		return 0, errors.NewValidationError("TENSOR_INDEX_OUT_OF_RANGE",
			fmt.Sprintf("component index %d is outside [0,%d)", i, TensorDimensions))
	}
	return p.components[i], nil
}

// IsZero reports whether the position is the unassessed all-zero vector
func (p TensorPosition) IsZero() bool {
	for _, c := range p.components {
		if c != 0 {
			return false
		}
	}
	return true
}

// DistanceTo computes the Euclidean distance to another position
func (p TensorPosition) DistanceTo(other TensorPosition) float64 {
	var sum float64
	for i := range p.components {
		d := p.components[i] - other.components[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SimilarityTo converts distance into a similarity score in [0,1]:
// 1 - min(distance / sqrt(13), 1). Identical positions score 1.0.
func (p TensorPosition) SimilarityTo(other TensorPosition) float64 {
	normalized := p.DistanceTo(other) / maxTensorDistance
	if normalized > 1 {
		normalized = 1
	}
	return 1 - normalized
}

// Equal checks component-wise equality
func (p TensorPosition) Equal(other TensorPosition) bool {
	return p.components == other.components
}

// String returns a compact display form
func (p TensorPosition) String() string {
	if p.IsZero() {
		return "tensor:<unassessed>"
	}
	return fmt.Sprintf("tensor:%v", p.components)
}

// MarshalJSON implements JSON marshaling as a plain array
func (p TensorPosition) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.components[:])
}

// UnmarshalJSON implements JSON unmarshaling with validation
func (p *TensorPosition) UnmarshalJSON(data []byte) error {
	var components []float64
	if err := json.Unmarshal(data, &components); err != nil {
		return err
	}

	pos, err := NewTensorPosition(components)
	if err != nil {
		return err
	}

	*p = pos
	return nil
}
