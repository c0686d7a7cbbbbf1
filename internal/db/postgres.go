package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	apperrors "github.com/alliefeldman/climatecoachbot/internal/errors"
	"github.com/alliefeldman/climatecoachbot/internal/models"
)

const reportColumns = `run_id, owner, repo, period, last_snapshot, current_snapshot, trend, created_at`

// SaveReport stores a report. Reports are immutable; saving the same run twice is a conflict.
func (s *PostgresStore) SaveReport(ctx context.Context, report *models.Report) error {
	if report == nil || report.Last == nil || report.Current == nil || report.Trend == nil {
		return apperrors.NewValidationError("report must carry both snapshots and a trend", nil)
	}

	last, err := json.Marshal(report.Last)
	if err != nil {
		return fmt.Errorf("failed to marshal last snapshot: %w", err)
	}
	current, err := json.Marshal(report.Current)
	if err != nil {
		return fmt.Errorf("failed to marshal current snapshot: %w", err)
	}
	trend, err := json.Marshal(report.Trend)
	if err != nil {
		return fmt.Errorf("failed to marshal trend: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metric_reports (
			run_id, owner, repo, period,
			last_window_since, current_window_end,
			last_snapshot, current_snapshot, trend, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.RunID, report.Owner, report.Repo, string(report.Period),
		report.Last.Window.Since, report.Current.Window.End,
		last, current, trend, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", report.RunID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"owner":  report.Owner,
		"repo":   report.Repo,
		"run_id": report.RunID,
	}).Info("Report saved")
	return nil
}

// GetLatestReport returns the most recent report of owner/repo
func (s *PostgresStore) GetLatestReport(ctx context.Context, owner, repo string) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM metric_reports
		WHERE owner = $1 AND repo = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, owner, repo)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no report for %s/%s", owner, repo), err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}
	return report, nil
}

// ListReports returns up to limit reports of owner/repo, newest first
func (s *PostgresStore) ListReports(ctx context.Context, owner, repo string, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM metric_reports
		WHERE owner = $1 AND repo = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`, owner, repo, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report rows: %w", err)
	}
	return reports, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row scanner) (*models.Report, error) {
	var (
		report                 models.Report
		period                 string
		last, current, trendJS []byte
	)

	if err := row.Scan(&report.RunID, &report.Owner, &report.Repo, &period, &last, &current, &trendJS, &report.CreatedAt); err != nil {
		return nil, err
	}
	report.Period = models.Period(period)

	if err := json.Unmarshal(last, &report.Last); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last snapshot: %w", err)
	}
	if err := json.Unmarshal(current, &report.Current); err != nil {
		return nil, fmt.Errorf("failed to unmarshal current snapshot: %w", err)
	}
	if err := json.Unmarshal(trendJS, &report.Trend); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trend: %w", err)
	}
	return &report, nil
}
