package workflow

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
	"github.com/aimsgrid/governance-engine/internal/domain/incident"
)

const (
	// DefaultSimilarityThreshold drops matches scoring below half similarity
	DefaultSimilarityThreshold = 0.5
	// DefaultSimilarityLimit caps the returned match list
	DefaultSimilarityLimit = 10
)

// SimilarIncident pairs a matched incident with its similarity score
type SimilarIncident struct {
	Incident   *incident.Incident `json:"incident"`
	Similarity float64            `json:"similarity"`
}

// FindSimilar scores every other incident's position against the target by
// Euclidean distance and returns matches at or above the threshold, best
// first. A threshold of exactly 0 selects DefaultSimilarityThreshold; pass a
// small positive value (and a large limit) to collect every scored neighbor.
// Likewise limit <= 0 selects DefaultSimilarityLimit. This is a deliberate
// brute-force scan over the whole corpus; callers should expect linear time
// in the incident count.
func (w *Workflow) FindSimilar(ctx context.Context, id uuid.UUID, threshold float64, limit int) ([]SimilarIncident, error) {
	if threshold < 0 || threshold > 1 {
		return nil, errors.NewValidationError("INVALID_THRESHOLD",
			"similarity threshold must be within [0,1]")
	}
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	if limit <= 0 {
		limit = DefaultSimilarityLimit
	}

	target, err := w.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	if target.TensorPosition.IsZero() {
		return nil, errors.NewPreconditionError("POSITION_NOT_ASSESSED",
			"target incident has no assessed position; complete its assessment first")
	}

	candidates, err := w.incidents.List(ctx, incident.Filter{})
	if err != nil {
		return nil, errors.NewDependencyError("incident repository",
			"could not list incidents for similarity search").WithCause(err)
	}

	matches := make([]SimilarIncident, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.ID == target.ID || candidate.TensorPosition.IsZero() {
			continue
		}

		score := target.TensorPosition.SimilarityTo(candidate.TensorPosition)
		if score >= threshold {
			matches = append(matches, SimilarIncident{Incident: candidate, Similarity: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}
