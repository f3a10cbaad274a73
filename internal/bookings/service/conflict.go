package service

import (
	"context"
	apperrors "movez/pkg/errors"
	"movez/pkg/model"
	"time"
)

// OverlapSource is the query the checker needs: active bookings of a car intersecting a range.
type OverlapSource interface {
	FindActiveOverlapping(ctx context.Context, carID string, start, end time.Time, excludeID string) ([]*model.Booking, error)
}

// ConflictChecker answers whether [start, end) collides with an active booking of a car.
// It reads only; atomicity with the subsequent insert is the caller's transaction.
type ConflictChecker struct {
	source OverlapSource
}

func NewConflictChecker(source OverlapSource) *ConflictChecker {
	return &ConflictChecker{source: source}
}

func (c *ConflictChecker) HasConflict(ctx context.Context, carID string, start, end time.Time, excludeID string) (bool, error) {
	conflicting, err := c.FirstConflict(ctx, carID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return conflicting != nil, nil
}

// FirstConflict returns the earliest active booking overlapping [start, end), or nil.
func (c *ConflictChecker) FirstConflict(ctx context.Context, carID string, start, end time.Time, excludeID string) (*model.Booking, error) {
	if !start.Before(end) {
		return nil, apperrors.Validation("start_date must be before end_date", map[string]any{
			"rule":       "start_before_end",
			"start_date": start,
			"end_date":   end,
		})
	}

	candidates, err := c.source.FindActiveOverlapping(ctx, carID, start, end, excludeID)
	if err != nil {
		return nil, apperrors.Internal("Failed to check existing bookings", err)
	}

	var first *model.Booking
	for _, b := range candidates {
		if b.ID == excludeID || b.CarID != carID || !b.Status.IsActive() || !b.Overlaps(start, end) {
			continue
		}
		if first == nil || b.StartDate.Before(first.StartDate) {
			first = b
		}
	}
	return first, nil
}
