package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dailyhot/hotspot/pkg/db"
	"github.com/dailyhot/hotspot/pkg/domain"
)

// TrendingRepository handles trending repo and model persistence
type TrendingRepository struct {
	db *db.DB
}

// NewTrendingRepository creates a new trending repository
func NewTrendingRepository(database *db.DB) *TrendingRepository {
	return &TrendingRepository{db: database}
}

// repoSQL represents a github repo for SQL operations
type repoSQL struct {
	ID            int64      `db:"id"`
	Name          string     `db:"name"`
	URL           string     `db:"url"`
	Description   string     `db:"description"`
	DescriptionCN string     `db:"description_cn"`
	Stars         int        `db:"stars"`
	Forks         int        `db:"forks"`
	Language      string     `db:"language"`
	Topics        stringsSQL `db:"topics"`
	AIReason      string     `db:"ai_reason"`
	ReportDate    string     `db:"report_date"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// modelSQL represents a huggingface model for SQL operations
type modelSQL struct {
	ID            int64      `db:"id"`
	ModelID       string     `db:"model_id"`
	URL           string     `db:"url"`
	DescriptionCN string     `db:"description_cn"`
	Likes         int        `db:"likes"`
	Downloads     int        `db:"downloads"`
	TrendingScore float64    `db:"trending_score"`
	PipelineTag   string     `db:"pipeline_tag"`
	Tags          stringsSQL `db:"tags"`
	AIReason      string     `db:"ai_reason"`
	ReportDate    string     `db:"report_date"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// UpsertRepos writes trending repos keyed on url, returns rows written
func (r *TrendingRepository) UpsertRepos(ctx context.Context, reportDate string, repos []domain.Repo) (int, error) {
	query := `
		INSERT INTO github_trending (
			name, url, description, description_cn, stars, forks, language, topics, ai_reason, report_date
		) VALUES (
			:name, :url, :description, :description_cn, :stars, :forks, :language, :topics, :ai_reason, :report_date
		)
		ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			description_cn = excluded.description_cn,
			stars = excluded.stars,
			forks = excluded.forks,
			language = excluded.language,
			topics = excluded.topics,
			ai_reason = excluded.ai_reason,
			report_date = excluded.report_date,
			updated_at = CURRENT_TIMESTAMP
	`

	count := 0
	for _, repo := range repos {
		if repo.URL == "" {
			continue
		}
		row := &repoSQL{
			Name:          repo.Name,
			URL:           repo.URL,
			Description:   repo.Description,
			DescriptionCN: repo.DescriptionCN,
			Stars:         repo.Stars,
			Forks:         repo.Forks,
			Language:      repo.Language,
			Topics:        stringsSQL(repo.Topics),
			AIReason:      repo.AIReason,
			ReportDate:    reportDate,
		}
		if err := r.exec(ctx, query, row, repo.URL); err != nil {
			return count, fmt.Errorf("upsert github trending: %w", err)
		}
		count++
	}
	return count, nil
}

// UpsertModels writes trending models keyed on url, returns rows written
func (r *TrendingRepository) UpsertModels(ctx context.Context, reportDate string, models []domain.Model) (int, error) {
	query := `
		INSERT INTO huggingface_trending (
			model_id, url, description_cn, likes, downloads, trending_score, pipeline_tag, tags, ai_reason, report_date
		) VALUES (
			:model_id, :url, :description_cn, :likes, :downloads, :trending_score, :pipeline_tag, :tags, :ai_reason, :report_date
		)
		ON CONFLICT(url) DO UPDATE SET
			model_id = excluded.model_id,
			description_cn = excluded.description_cn,
			likes = excluded.likes,
			downloads = excluded.downloads,
			trending_score = excluded.trending_score,
			pipeline_tag = excluded.pipeline_tag,
			tags = excluded.tags,
			ai_reason = excluded.ai_reason,
			report_date = excluded.report_date,
			updated_at = CURRENT_TIMESTAMP
	`

	count := 0
	for _, model := range models {
		if model.URL == "" {
			continue
		}
		row := &modelSQL{
			ModelID:       model.ModelID,
			URL:           model.URL,
			DescriptionCN: model.DescriptionCN,
			Likes:         model.Likes,
			Downloads:     model.Downloads,
			TrendingScore: model.TrendingScore,
			PipelineTag:   model.PipelineTag,
			Tags:          stringsSQL(model.Tags),
			AIReason:      model.AIReason,
			ReportDate:    reportDate,
		}
		if err := r.exec(ctx, query, row, model.URL); err != nil {
			return count, fmt.Errorf("upsert huggingface trending: %w", err)
		}
		count++
	}
	return count, nil
}

func (r *TrendingRepository) exec(ctx context.Context, query string, row any, url string) error {
	return withLockRetry(ctx, func() error {
		if _, err := r.db.DB().NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err
			}
			return fmt.Errorf("%w: write %s: %v", errCritical, url, err)
		}
		return nil
	})
}

// ReposByDate returns trending repos stored for a report date
func (r *TrendingRepository) ReposByDate(ctx context.Context, reportDate string) ([]domain.Repo, error) {
	var rows []repoSQL
	err := r.db.DB().SelectContext(ctx, &rows, `
		SELECT * FROM github_trending WHERE report_date = ? ORDER BY stars DESC`, reportDate)
	if err != nil {
		return nil, fmt.Errorf("list github trending for %s: %w", reportDate, err)
	}

	repos := make([]domain.Repo, 0, len(rows))
	for _, row := range rows {
		repos = append(repos, domain.Repo{
			Name:          row.Name,
			URL:           row.URL,
			Description:   row.Description,
			DescriptionCN: row.DescriptionCN,
			Stars:         row.Stars,
			Forks:         row.Forks,
			Language:      row.Language,
			Topics:        row.Topics,
			AIReason:      row.AIReason,
		})
	}
	return repos, nil
}

// ModelsByDate returns trending models stored for a report date
func (r *TrendingRepository) ModelsByDate(ctx context.Context, reportDate string) ([]domain.Model, error) {
	var rows []modelSQL
	err := r.db.DB().SelectContext(ctx, &rows, `
		SELECT * FROM huggingface_trending WHERE report_date = ? ORDER BY trending_score DESC`, reportDate)
	if err != nil {
		return nil, fmt.Errorf("list huggingface trending for %s: %w", reportDate, err)
	}

	models := make([]domain.Model, 0, len(rows))
	for _, row := range rows {
		models = append(models, domain.Model{
			ModelID:       row.ModelID,
			URL:           row.URL,
			DescriptionCN: row.DescriptionCN,
			Likes:         row.Likes,
			Downloads:     row.Downloads,
			TrendingScore: row.TrendingScore,
			PipelineTag:   row.PipelineTag,
			Tags:          row.Tags,
			AIReason:      row.AIReason,
		})
	}
	return models, nil
}
