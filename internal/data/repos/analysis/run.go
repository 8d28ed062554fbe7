package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

type AnalysisRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.AnalysisRun) (*types.AnalysisRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalysisRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	RequestCancel(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	IsCancelRequested(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	ListByAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, limit int) ([]*types.AnalysisRun, error)
}

type analysisRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRunRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRunRepo {
	return &analysisRunRepo{db: db, log: baseLog.With("repo", "AnalysisRunRepo")}
}

func (r *analysisRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.AnalysisRun) (*types.AnalysisRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, nil
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *analysisRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalysisRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.AnalysisRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *analysisRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.AnalysisRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RequestCancel flips a pending/running run to cancelled. The orchestrator
// observes the flag between chunk dispatches; in-flight calls finish.
func (r *analysisRunRepo) RequestCancel(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.AnalysisRun{}).
		Where("id = ? AND status IN ?", id, []string{types.RunPending, types.RunRunning}).
		Updates(map[string]interface{}{
			"status":     types.RunCancelled,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *analysisRunRepo) IsCancelRequested(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	var status string
	err := transaction.WithContext(ctx).
		Model(&types.AnalysisRun{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return false, err
	}
	return status == types.RunCancelled, nil
}

func (r *analysisRunRepo) ListByAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, limit int) ([]*types.AnalysisRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AnalysisRun
	if accountID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if err := transaction.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
