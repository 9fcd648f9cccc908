package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyhot/hotspot/pkg/db"
	"github.com/dailyhot/hotspot/pkg/domain"
)

// HotspotRepository handles selected item persistence
type HotspotRepository struct {
	db *db.DB
}

// NewHotspotRepository creates a new hotspot repository
func NewHotspotRepository(database *db.DB) *HotspotRepository {
	return &HotspotRepository{db: database}
}

// hotspotSQL represents a selected item for SQL operations
type hotspotSQL struct {
	ID              int64      `db:"id"`
	Title           string     `db:"title"`
	URL             string     `db:"url"`
	Summary         string     `db:"summary"`
	Source          string     `db:"source"`
	AIReason        string     `db:"ai_reason"`
	Tags            stringsSQL `db:"tags"`
	Keywords        stringsSQL `db:"keywords"`
	Published       *time.Time `db:"published"`
	DuplicateGroup  string     `db:"duplicate_group"`
	IsPrimary       bool       `db:"is_primary"`
	SimilarityScore float64    `db:"similarity_score"`
	DuplicateOf     string     `db:"duplicate_of"`
	ReportDate      string     `db:"report_date"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Upsert writes selected items for one source, keyed on url. Returns
// the number of rows written. Items without a URL are skipped.
func (r *HotspotRepository) Upsert(ctx context.Context, source, reportDate string, items []domain.SelectedItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO hotspots (
			title, url, summary, source, ai_reason, tags, keywords, published,
			duplicate_group, is_primary, similarity_score, duplicate_of, report_date
		) VALUES (
			:title, :url, :summary, :source, :ai_reason, :tags, :keywords, :published,
			:duplicate_group, :is_primary, :similarity_score, :duplicate_of, :report_date
		)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			source = excluded.source,
			ai_reason = excluded.ai_reason,
			tags = excluded.tags,
			keywords = excluded.keywords,
			published = excluded.published,
			duplicate_group = excluded.duplicate_group,
			is_primary = excluded.is_primary,
			similarity_score = excluded.similarity_score,
			duplicate_of = excluded.duplicate_of,
			report_date = excluded.report_date,
			updated_at = CURRENT_TIMESTAMP
	`

	count := 0
	for _, item := range items {
		if item.URL == "" {
			continue
		}

		row := &hotspotSQL{
			Title:           item.Title,
			URL:             item.URL,
			Summary:         item.Summary,
			Source:          source,
			AIReason:        item.AIReason,
			Tags:            stringsSQL(item.Tags),
			Keywords:        stringsSQL(item.Keywords),
			Published:       item.Published,
			DuplicateGroup:  item.DuplicateGroup,
			IsPrimary:       item.IsPrimary,
			SimilarityScore: item.SimilarityScore,
			DuplicateOf:     item.DuplicateOf,
			ReportDate:      reportDate,
		}

		err := withLockRetry(ctx, func() error {
			if _, execErr := r.db.DB().NamedExecContext(ctx, query, row); execErr != nil {
				if isLockError(execErr) {
					return execErr
				}
				return fmt.Errorf("%w: upsert hotspot %s: %v", errCritical, item.URL, execErr)
			}
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("upsert hotspots for %s: %w", source, err)
		}
		count++
	}

	return count, nil
}

// ListByDate returns all items stored for a report date, primaries first
func (r *HotspotRepository) ListByDate(ctx context.Context, reportDate string) ([]domain.SelectedItem, error) {
	var rows []hotspotSQL
	err := r.db.DB().SelectContext(ctx, &rows, `
		SELECT * FROM hotspots WHERE report_date = ?
		ORDER BY is_primary DESC, id`, reportDate)
	if err != nil {
		return nil, fmt.Errorf("list hotspots for %s: %w", reportDate, err)
	}

	items := make([]domain.SelectedItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toDomain())
	}
	return items, nil
}

func (h *hotspotSQL) toDomain() domain.SelectedItem {
	return domain.SelectedItem{
		RawItem: domain.RawItem{
			Title:     h.Title,
			URL:       h.URL,
			Summary:   h.Summary,
			Published: h.Published,
		},
		AIReason:        h.AIReason,
		Tags:            h.Tags,
		Keywords:        h.Keywords,
		DuplicateGroup:  h.DuplicateGroup,
		IsPrimary:       h.IsPrimary,
		SimilarityScore: h.SimilarityScore,
		DuplicateOf:     h.DuplicateOf,
	}
}
