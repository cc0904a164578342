package csvimport

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// TypedRecordRepo stages typed rows between validation steps.
type TypedRecordRepo interface {
	CreateBatch(dbc dbctx.Context, records []*types.TypedCSVRecord) error
	ListAfter(dbc dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.TypedCSVRecord, error)
	Count(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
	DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
}

// PaperRecordRepo stages validated paper rows until they are imported.
type PaperRecordRepo interface {
	CreateBatch(dbc dbctx.Context, records []*types.PaperCSVRecord) error
	ListAfter(dbc dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.PaperCSVRecord, error)
	Count(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
	DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
}

// itemConflict makes re-staging a row after a resumed chunk a no-op.
var itemConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "csv_id"}, {Name: "item_number"}},
	DoNothing: true,
}

type typedRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTypedRecordRepo(db *gorm.DB, baseLog *logger.Logger) TypedRecordRepo {
	return &typedRecordRepo{db: db, log: baseLog.With("repo", "TypedRecordRepo")}
}

func (r *typedRecordRepo) CreateBatch(dbc dbctx.Context, records []*types.TypedCSVRecord) error {
	q := dbc.DB(r.db)
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
	}
	return q.Clauses(itemConflict).CreateInBatches(&records, 200).Error
}

func (r *typedRecordRepo) ListAfter(dbc dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.TypedCSVRecord, error) {
	q := dbc.DB(r.db)
	var out []*types.TypedCSVRecord
	err := q.
		Where("csv_id = ? AND item_number > ?", csvID, afterItem).
		Order("item_number ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *typedRecordRepo) Count(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	var n int64
	err := q.Model(&types.TypedCSVRecord{}).Where("csv_id = ?", csvID).Count(&n).Error
	return n, err
}

func (r *typedRecordRepo) DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	res := q.Where("csv_id = ?", csvID).Delete(&types.TypedCSVRecord{})
	return res.RowsAffected, res.Error
}

type paperRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaperRecordRepo(db *gorm.DB, baseLog *logger.Logger) PaperRecordRepo {
	return &paperRecordRepo{db: db, log: baseLog.With("repo", "PaperRecordRepo")}
}

func (r *paperRecordRepo) CreateBatch(dbc dbctx.Context, records []*types.PaperCSVRecord) error {
	q := dbc.DB(r.db)
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
	}
	return q.Clauses(itemConflict).CreateInBatches(&records, 200).Error
}

func (r *paperRecordRepo) ListAfter(dbc dbctx.Context, csvID uuid.UUID, afterItem int64, limit int) ([]*types.PaperCSVRecord, error) {
	q := dbc.DB(r.db)
	var out []*types.PaperCSVRecord
	err := q.
		Where("csv_id = ? AND item_number > ?", csvID, afterItem).
		Order("item_number ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *paperRecordRepo) Count(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	var n int64
	err := q.Model(&types.PaperCSVRecord{}).Where("csv_id = ?", csvID).Count(&n).Error
	return n, err
}

func (r *paperRecordRepo) DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	res := q.Where("csv_id = ?", csvID).Delete(&types.PaperCSVRecord{})
	return res.RowsAffected, res.Error
}
