package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dailyhot/hotspot/pkg/db"
	"github.com/dailyhot/hotspot/pkg/domain"
)

// ReportRepository handles daily report persistence. Saving is
// incremental: a second run on the same day appends only the source
// sections the stored report does not have yet.
type ReportRepository struct {
	db *db.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(database *db.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

type reportSQL struct {
	Content  string         `db:"content"`
	Summary  string         `db:"summary"`
	Analysis sql.NullString `db:"analysis"`
}

// sectionHeader matches markdown source sections, one per feed source
var sectionHeader = regexp.MustCompile(`(?m)^## (.+)$`)

// Save upserts a report keyed on its date, merging source sections
// into any report already stored for that date
func (r *ReportRepository) Save(ctx context.Context, report domain.Report) error {
	var analysisJSON sql.NullString
	if report.Analysis != nil {
		data, err := json.Marshal(report.Analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		analysisJSON = sql.NullString{String: string(data), Valid: true}
	}

	return withLockRetry(ctx, func() error {
		err := r.db.InTransaction(ctx, func(tx *sqlx.Tx) error {
			content, summary := report.Content, report.Summary

			var existing reportSQL
			err := tx.GetContext(ctx, &existing,
				"SELECT content, summary, analysis FROM daily_reports WHERE report_date = ?", report.Date)
			switch {
			case err == nil:
				content = mergeContent(existing.Content, report.Content)
				if existing.Summary != "" {
					summary = existing.Summary
				}
				if !analysisJSON.Valid {
					analysisJSON = existing.Analysis
				}
			case errors.Is(err, sql.ErrNoRows): // first save today
			default:
				return fmt.Errorf("read existing report: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO daily_reports (report_date, content, summary, analysis)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(report_date) DO UPDATE SET
					content = excluded.content,
					summary = excluded.summary,
					analysis = excluded.analysis,
					updated_at = CURRENT_TIMESTAMP`,
				report.Date, content, summary, analysisJSON)
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		})
		if err != nil {
			if isLockError(err) {
				return err
			}
			return fmt.Errorf("%w: save report %s: %v", errCritical, report.Date, err)
		}
		return nil
	})
}

// Get returns the report stored for a date
func (r *ReportRepository) Get(ctx context.Context, date string) (domain.Report, error) {
	var row reportSQL
	err := r.db.DB().GetContext(ctx, &row,
		"SELECT content, summary, analysis FROM daily_reports WHERE report_date = ?", date)
	if err != nil {
		return domain.Report{}, fmt.Errorf("get report %s: %w", date, err)
	}

	report := domain.Report{Date: date, Content: row.Content, Summary: row.Summary}
	if row.Analysis.Valid && row.Analysis.String != "" {
		var analysis domain.Analysis
		if err := json.Unmarshal([]byte(row.Analysis.String), &analysis); err != nil {
			return domain.Report{}, fmt.Errorf("unmarshal analysis: %w", err)
		}
		report.Analysis = &analysis
	}
	return report, nil
}

// mergeContent appends to old the "## source" sections of new that old
// does not contain, keeping old untouched otherwise
func mergeContent(old, latest string) string {
	existing := map[string]bool{}
	for _, m := range sectionHeader.FindAllStringSubmatch(old, -1) {
		existing[m[1]] = true
	}

	var added []string
	for _, section := range splitSections(latest) {
		m := sectionHeader.FindStringSubmatch(section)
		if m == nil || existing[m[1]] {
			continue
		}
		added = append(added, section)
	}

	if len(added) == 0 {
		return old
	}
	return strings.TrimRight(old, "\n") + "\n\n" + strings.Join(added, "\n")
}

// splitSections splits markdown into blocks each starting at a "## "
// header, the preamble before the first header comes out as block zero
func splitSections(content string) []string {
	starts := sectionHeader.FindAllStringIndex(content, -1)
	if len(starts) == 0 {
		return []string{content}
	}

	var sections []string
	if starts[0][0] > 0 {
		sections = append(sections, content[:starts[0][0]])
	}
	for i, start := range starts {
		end := len(content)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		sections = append(sections, content[start[0]:end])
	}
	return sections
}
