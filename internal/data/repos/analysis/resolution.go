package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

type ResolutionRepo interface {
	GetByIdentifiers(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType string, identifiers []string) ([]*types.ResolutionRecord, error)
	Upsert(ctx context.Context, tx *gorm.DB, records []*types.ResolutionRecord) ([]*types.ResolutionRecord, error)
	SetManual(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType, identifier, asin string) (bool, error)
}

type resolutionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewResolutionRepo(db *gorm.DB, baseLog *logger.Logger) ResolutionRepo {
	return &resolutionRepo{db: db, log: baseLog.With("repo", "ResolutionRepo")}
}

func (r *resolutionRepo) GetByIdentifiers(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType string, identifiers []string) ([]*types.ResolutionRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ResolutionRecord
	if accountID == uuid.Nil || len(identifiers) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("account_id = ? AND identifier_type = ? AND input_identifier IN ?", accountID, identifierType, identifiers).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *resolutionRepo) Upsert(ctx context.Context, tx *gorm.DB, records []*types.ResolutionRecord) ([]*types.ResolutionRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.ResolutionRecord{}, nil
	}
	now := time.Now()
	for _, rec := range records {
		if rec.ResolvedAt.IsZero() {
			rec.ResolvedAt = now
		}
		rec.UpdatedAt = now
	}
	if err := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "account_id"},
				{Name: "identifier_type"},
				{Name: "input_identifier"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"asin", "status", "candidates", "resolved_at", "updated_at"}),
		}).
		Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// SetManual transitions a not_found or ambiguous record to manual with the
// user-chosen ASIN. Returns false when no eligible record matched.
func (r *resolutionRepo) SetManual(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType, identifier, asin string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if accountID == uuid.Nil || identifier == "" || asin == "" {
		return false, nil
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.ResolutionRecord{}).
		Where("account_id = ? AND identifier_type = ? AND input_identifier = ? AND status IN ?",
			accountID, identifierType, identifier,
			[]string{types.ResolutionNotFound, types.ResolutionAmbiguous},
		).
		Updates(map[string]interface{}{
			"asin":        asin,
			"status":      types.ResolutionManual,
			"resolved_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
