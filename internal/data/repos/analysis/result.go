package analysis

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// AnalysisResultRepo only inserts and reads; result rows are immutable and a
// re-analysis writes a new row.
type AnalysisResultRepo interface {
	Create(ctx context.Context, tx *gorm.DB, results []*types.AnalysisResult) ([]*types.AnalysisResult, error)
	GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.AnalysisResult, error)
	CountByStatus(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (map[string]int, error)
	GetLatestByIdentifier(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifier string) (*types.AnalysisResult, error)
}

type analysisResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisResultRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisResultRepo {
	return &analysisResultRepo{db: db, log: baseLog.With("repo", "AnalysisResultRepo")}
}

func (r *analysisResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.AnalysisResult) ([]*types.AnalysisResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(results) == 0 {
		return []*types.AnalysisResult{}, nil
	}

	const batchSize = 200

	if err := transaction.WithContext(ctx).CreateInBatches(results, batchSize).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *analysisResultRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.AnalysisResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AnalysisResult
	if runID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("score DESC NULLS LAST, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *analysisResultRepo) CountByStatus(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (map[string]int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[string]int{}
	if runID == uuid.Nil {
		return out, nil
	}
	var rows []struct {
		Status string
		N      int
	}
	if err := transaction.WithContext(ctx).
		Model(&types.AnalysisResult{}).
		Select("status, count(*) as n").
		Where("run_id = ?", runID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func (r *analysisResultRepo) GetLatestByIdentifier(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifier string) (*types.AnalysisResult, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if accountID == uuid.Nil || identifier == "" {
		return nil, nil
	}
	var row types.AnalysisResult
	err := transaction.WithContext(ctx).
		Where("account_id = ? AND input_identifier = ?", accountID, identifier).
		Order("created_at DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
