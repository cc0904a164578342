package csvimport

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type ImportResultRepo interface {
	CreateBatch(dbc dbctx.Context, results []*types.PaperCSVRecordImportResult) error
	ListByCSV(dbc dbctx.Context, csvID uuid.UUID, page Page) ([]*types.PaperCSVRecordImportResult, int64, error)
	CountByType(dbc dbctx.Context, csvID uuid.UUID) (map[types.ImportedEntityType]int64, error)
	DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
}

type RowErrorRepo interface {
	CreateBatch(dbc dbctx.Context, rows []*types.RowError) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, page Page) ([]*types.RowError, int64, error)
	CountByJob(dbc dbctx.Context, jobID uuid.UUID) (int64, error)
	DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error)
	DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type importResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportResultRepo(db *gorm.DB, baseLog *logger.Logger) ImportResultRepo {
	return &importResultRepo{db: db, log: baseLog.With("repo", "ImportResultRepo")}
}

func (r *importResultRepo) CreateBatch(dbc dbctx.Context, results []*types.PaperCSVRecordImportResult) error {
	q := dbc.DB(r.db)
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, res := range results {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		if res.CreatedAt.IsZero() {
			res.CreatedAt = now
		}
	}
	return q.CreateInBatches(&results, 200).Error
}

func (r *importResultRepo) ListByCSV(dbc dbctx.Context, csvID uuid.UUID, page Page) ([]*types.PaperCSVRecordImportResult, int64, error) {
	q := dbc.DB(r.db)
	var total int64
	if err := q.Model(&types.PaperCSVRecordImportResult{}).Where("csv_id = ?", csvID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.PaperCSVRecordImportResult
	err := q.Where("csv_id = ?", csvID).Order("created_at ASC, item_number ASC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *importResultRepo) CountByType(dbc dbctx.Context, csvID uuid.UUID) (map[types.ImportedEntityType]int64, error) {
	q := dbc.DB(r.db)
	var rows []struct {
		ImportedEntityType types.ImportedEntityType
		N                  int64
	}
	err := q.
		Model(&types.PaperCSVRecordImportResult{}).
		Select("imported_entity_type, COUNT(*) AS n").
		Where("csv_id = ?", csvID).
		Group("imported_entity_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[types.ImportedEntityType]int64, len(rows))
	for _, row := range rows {
		out[row.ImportedEntityType] = row.N
	}
	return out, nil
}

func (r *importResultRepo) DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	res := q.Where("csv_id = ?", csvID).Delete(&types.PaperCSVRecordImportResult{})
	return res.RowsAffected, res.Error
}

type rowErrorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRowErrorRepo(db *gorm.DB, baseLog *logger.Logger) RowErrorRepo {
	return &rowErrorRepo{db: db, log: baseLog.With("repo", "RowErrorRepo")}
}

func (r *rowErrorRepo) CreateBatch(dbc dbctx.Context, rows []*types.RowError) error {
	q := dbc.DB(r.db)
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return q.CreateInBatches(&rows, 200).Error
}

func (r *rowErrorRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, page Page) ([]*types.RowError, int64, error) {
	q := dbc.DB(r.db)
	var total int64
	if err := q.Model(&types.RowError{}).Where("job_id = ?", jobID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.RowError
	err := q.Where("job_id = ?", jobID).Order("item_number ASC, csv_column ASC NULLS FIRST").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *rowErrorRepo) CountByJob(dbc dbctx.Context, jobID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	var n int64
	err := q.Model(&types.RowError{}).Where("job_id = ?", jobID).Count(&n).Error
	return n, err
}

func (r *rowErrorRepo) DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	q := dbc.DB(r.db)
	res := q.Where("created_at < ?", cutoff).Delete(&types.RowError{})
	return res.RowsAffected, res.Error
}

func (r *rowErrorRepo) DeleteByCSV(dbc dbctx.Context, csvID uuid.UUID) (int64, error) {
	q := dbc.DB(r.db)
	res := q.Where("csv_id = ?", csvID).Delete(&types.RowError{})
	return res.RowsAffected, res.Error
}
