package analysis

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Resolution statuses. A record is terminal once it reaches found, not_found
// or manual; ambiguous only leaves via explicit user disambiguation.
const (
	ResolutionFound     = "found"
	ResolutionNotFound  = "not_found"
	ResolutionAmbiguous = "ambiguous"
	ResolutionManual    = "manual"
	ResolutionError     = "error"
)

// Identifier types accepted by the pipeline.
const (
	IdentifierTypeUPC  = "upc"
	IdentifierTypeEAN  = "ean"
	IdentifierTypeASIN = "asin"
)

// AnalysisResult statuses.
const (
	ResultSuccess      = "success"
	ResultPartial      = "partial"
	ResultNoPrice      = "no_price"
	ResultError        = "error"
	ResultDisqualified = "disqualified"
)

// AnalysisRun statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// ResolutionRecord maps an input identifier to a canonical marketplace ASIN.
// One row per (account, identifier type, identifier); terminal rows are reused
// across runs and never re-resolved against the provider.
type ResolutionRecord struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AccountID       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_resolution_lookup,priority:1" json:"account_id"`
	InputIdentifier string         `gorm:"column:input_identifier;not null;uniqueIndex:idx_resolution_lookup,priority:3" json:"input_identifier"`
	IdentifierType  string         `gorm:"column:identifier_type;not null;uniqueIndex:idx_resolution_lookup,priority:2" json:"identifier_type"`
	ASIN            *string        `gorm:"column:asin;index" json:"asin,omitempty"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	Candidates      datatypes.JSON `gorm:"column:candidates;type:jsonb" json:"candidates"`
	ResolvedAt      time.Time      `gorm:"column:resolved_at;not null" json:"resolved_at"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ResolutionRecord) TableName() string { return "resolution_record" }

// Terminal reports whether this record should short-circuit provider lookups.
// Ambiguous records are terminal for the pipeline (no call will improve them)
// but remain eligible for manual disambiguation.
func (r *ResolutionRecord) Terminal() bool {
	switch r.Status {
	case ResolutionFound, ResolutionNotFound, ResolutionAmbiguous, ResolutionManual:
		return true
	default:
		return false
	}
}

// Usable reports whether the record yields an ASIN downstream stages can use.
func (r *ResolutionRecord) Usable() bool {
	return (r.Status == ResolutionFound || r.Status == ResolutionManual) && r.ASIN != nil && *r.ASIN != ""
}

// ResolutionCandidate is one of the catalog matches stored on an ambiguous
// record so the user can disambiguate.
type ResolutionCandidate struct {
	ASIN     string `json:"asin"`
	Title    string `json:"title"`
	Brand    string `json:"brand,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// AnalysisRun is one pipeline execution over a batch of input items.
type AnalysisRun struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AccountID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"account_id"`
	Status       string     `gorm:"column:status;not null;index" json:"status"`
	Total        int        `gorm:"column:total;not null;default:0" json:"total"`
	Succeeded    int        `gorm:"column:succeeded;not null;default:0" json:"succeeded"`
	Partial      int        `gorm:"column:partial;not null;default:0" json:"partial"`
	Failed       int        `gorm:"column:failed;not null;default:0" json:"failed"`
	Disqualified int        `gorm:"column:disqualified;not null;default:0" json:"disqualified"`
	NoPrice      int        `gorm:"column:no_price;not null;default:0" json:"no_price"`
	Unresolved   int        `gorm:"column:unresolved;not null;default:0" json:"unresolved"`
	Error        string     `gorm:"column:error" json:"error,omitempty"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (AnalysisRun) TableName() string { return "analysis_run" }

// AnalysisResult is the per-item outcome of a run. Rows are immutable once
// written; re-analysis inserts a new row so history is preserved.
type AnalysisResult struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RunID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"run_id"`
	AccountID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"account_id"`
	InputIdentifier string         `gorm:"column:input_identifier;not null;index" json:"input_identifier"`
	IdentifierType  string         `gorm:"column:identifier_type;not null" json:"identifier_type"`
	GroupingKey     string         `gorm:"column:grouping_key;index" json:"grouping_key,omitempty"`
	ASIN            *string        `gorm:"column:asin;index" json:"asin,omitempty"`
	UnitCost        float64        `gorm:"column:unit_cost;not null" json:"unit_cost"`
	PackSize        int            `gorm:"column:pack_size;not null;default:1" json:"pack_size"`
	SellPrice       *float64       `gorm:"column:sell_price" json:"sell_price,omitempty"`
	PriceSource     string         `gorm:"column:price_source" json:"price_source,omitempty"`
	ReferralFee     *float64       `gorm:"column:referral_fee" json:"referral_fee,omitempty"`
	FulfillmentFee  *float64       `gorm:"column:fulfillment_fee" json:"fulfillment_fee,omitempty"`
	TotalFees       *float64       `gorm:"column:total_fees" json:"total_fees,omitempty"`
	Profit          *float64       `gorm:"column:profit" json:"profit,omitempty"`
	ROI             *float64       `gorm:"column:roi" json:"roi,omitempty"`
	Margin          *float64       `gorm:"column:margin" json:"margin,omitempty"`
	BreakEvenPrice  *float64       `gorm:"column:break_even_price" json:"break_even_price,omitempty"`
	Score           *float64       `gorm:"column:score" json:"score,omitempty"`
	Grade           string         `gorm:"column:grade" json:"grade,omitempty"`
	ScoreBreakdown  datatypes.JSON `gorm:"column:score_breakdown;type:jsonb" json:"score_breakdown,omitempty"`
	Insights        datatypes.JSON `gorm:"column:insights;type:jsonb" json:"insights,omitempty"`
	Title           string         `gorm:"column:title" json:"title,omitempty"`
	Brand           string         `gorm:"column:brand" json:"brand,omitempty"`
	Category        string         `gorm:"column:category" json:"category,omitempty"`
	SalesRank       *int           `gorm:"column:sales_rank" json:"sales_rank,omitempty"`
	Status          string         `gorm:"column:status;not null;index" json:"status"`
	ErrorReason     string         `gorm:"column:error_reason" json:"error_reason,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (AnalysisResult) TableName() string { return "analysis_result" }
