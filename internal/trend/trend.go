// Package trend computes relative changes between two metrics snapshots.
package trend

import (
	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

// ChangeRatio returns (current - last) / last. A zero baseline yields 0 when
// current is also 0 and 1 otherwise.
func ChangeRatio(last, current float64) float64 {
	if last == 0 {
		if current == 0 {
			return 0
		}
		return 1
	}
	return (current - last) / last
}

// Calculate compares current against last. Both snapshots are required.
func Calculate(last, current *models.MetricsSnapshot) (*models.TrendDelta, error) {
	if last == nil || current == nil {
		return nil, apperrors.NewPreconditionError("trend needs both the previous and the current snapshot")
	}

	return &models.TrendDelta{
		LastWindow:    last.Window,
		CurrentWindow: current.Window,
		Issues:        kindDelta(last.Issues, current.Issues),
		PullRequests:  kindDelta(last.PullRequests, current.PullRequests),
		AvgTenure:     ChangeRatio(last.AvgTenure, current.AvgTenure),
	}, nil
}

func kindDelta(last, current models.KindMetrics) models.KindDelta {
	return models.KindDelta{
		NumUniqueAuthors:          ratioInt(last.NumUniqueAuthors, current.NumUniqueAuthors),
		NumNewAuthors:             ratioInt(last.NumNewAuthors, current.NumNewAuthors),
		NumRecurAuthors:           ratioInt(last.NumRecurAuthors, current.NumRecurAuthors),
		NumClosed:                 ratioInt(last.NumClosed, current.NumClosed),
		NumClosedZeroComments:     ratioInt(last.NumClosedZeroComments, current.NumClosedZeroComments),
		AvgCloseTime:              ChangeRatio(last.AvgCloseTime, current.AvgCloseTime),
		MedianCloseTime:           ChangeRatio(last.MedianCloseTime, current.MedianCloseTime),
		AvgCommentsBeforeClose:    ChangeRatio(last.AvgCommentsBeforeClose, current.AvgCommentsBeforeClose),
		MedianCommentsBeforeClose: ChangeRatio(last.MedianCommentsBeforeClose, current.MedianCommentsBeforeClose),
		NumOpened:                 ratioInt(last.NumOpened, current.NumOpened),
		AvgRecentComments:         ChangeRatio(last.AvgRecentComments, current.AvgRecentComments),
		MedianRecentComments:      ChangeRatio(last.MedianRecentComments, current.MedianRecentComments),
		NumToxicConversations:     ratioInt(last.NumToxicConversations, current.NumToxicConversations),
		NumToxicComments:          ratioInt(last.NumToxicComments, current.NumToxicComments),
		MaxToxic:                  ChangeRatio(valueOrZero(last.MaxToxic), valueOrZero(current.MaxToxic)),
	}
}

func ratioInt(last, current int) float64 {
	return ChangeRatio(float64(last), float64(current))
}

// valueOrZero reads a null maximum as 0 for trend purposes only
func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
