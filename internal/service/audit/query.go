package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// integrityPageSize bounds each repository read during an integrity scan
const integrityPageSize = 1000

// Query returns entries matching the filter, ordered newest-first
func (l *Log) Query(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	entries, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.NewDependencyError("audit repository",
			"audit query failed").WithCause(err)
	}
	return entries, nil
}

// VerifyIntegrity scans the store ordered by sequence number and reports any
// numeric gaps. Gaps are reported for investigation, never thrown.
func (l *Log) VerifyIntegrity(ctx context.Context) (*audit.IntegrityReport, error) {
	latest, err := l.repo.GetLatestSequenceNumber(ctx)
	if err != nil {
		return nil, errors.NewDependencyError("audit repository",
			"could not determine latest sequence number").WithCause(err)
	}

	report := &audit.IntegrityReport{CheckedAt: time.Now().UTC()}
	if latest == 0 {
		return report, nil
	}

	var prev int64
	for from := int64(1); from <= latest; from += integrityPageSize {
		to := from + integrityPageSize - 1
		if to > latest {
			to = latest
		}

		page, err := l.repo.ListBySequence(ctx, from, to)
		if err != nil {
			return nil, errors.NewDependencyError("audit repository",
				"integrity scan read failed").WithCause(err)
		}

		for _, entry := range page {
			if report.FirstSequence == 0 {
				report.FirstSequence = entry.SequenceNum
				prev = entry.SequenceNum
				report.EntriesChecked++
				continue
			}
			if entry.SequenceNum > prev+1 {
				report.Gaps = append(report.Gaps, audit.SequenceGap{
					From: prev + 1,
					To:   entry.SequenceNum - 1,
				})
			}
			prev = entry.SequenceNum
			report.EntriesChecked++
		}
	}

	report.LastSequence = prev

	if !report.OK() {
		l.logger.Warn("audit integrity scan found sequence gaps",
			zap.Int("gap_count", len(report.Gaps)),
			zap.Int64("entries_checked", report.EntriesChecked),
		)
	}

	return report, nil
}

// GetEntityTrail returns the full chronological trail for one entity
func (l *Log) GetEntityTrail(ctx context.Context, entityType, entityID string) ([]*audit.Entry, error) {
	if entityType == "" || entityID == "" {
		return nil, errors.NewValidationError("MISSING_ENTITY",
			"entity type and ID are required")
	}

	entries, err := l.Query(ctx, audit.Filter{
		EntityType: entityType,
		EntityID:   entityID,
	})
	if err != nil {
		return nil, err
	}

	// List is newest-first; a trail reads oldest-first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// GetEntitySummary aggregates the trail of one entity
func (l *Log) GetEntitySummary(ctx context.Context, entityType, entityID string) (*audit.EntitySummary, error) {
	trail, err := l.GetEntityTrail(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	summary := &audit.EntitySummary{
		EntityType:  entityType,
		EntityID:    entityID,
		ByAction:    make(map[audit.Action]int64),
		ByActor:     make(map[string]int64),
		ByEventType: make(map[audit.EventType]int64),
	}

	for _, entry := range trail {
		summary.TotalEntries++
		summary.ByAction[entry.Action]++
		summary.ByEventType[entry.EventType]++
		if entry.ActorID != "" {
			summary.ByActor[entry.ActorID]++
		}
		if summary.FirstSeen.IsZero() || entry.Timestamp.Before(summary.FirstSeen) {
			summary.FirstSeen = entry.Timestamp
		}
		if entry.Timestamp.After(summary.LastSeen) {
			summary.LastSeen = entry.Timestamp
		}
	}

	return summary, nil
}

// GetActorActivity returns an actor's entries since a point in time,
// newest-first
func (l *Log) GetActorActivity(ctx context.Context, actorID string, since time.Time) ([]*audit.Entry, error) {
	if actorID == "" {
		return nil, errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}

	filter := audit.Filter{ActorIDs: []string{actorID}}
	if !since.IsZero() {
		filter.Since = &since
	}
	return l.Query(ctx, filter)
}

// CountSince counts entries of one event type written after the given instant.
// The alert engine uses this for event-pattern rules.
func (l *Log) CountSince(ctx context.Context, eventType audit.EventType, since time.Time) (int64, error) {
	count, err := l.repo.Count(ctx, audit.Filter{
		EventTypes: []audit.EventType{eventType},
		Since:      &since,
	})
	if err != nil {
		return 0, errors.NewDependencyError("audit repository",
			"audit count failed").WithCause(err)
	}
	return count, nil
}
