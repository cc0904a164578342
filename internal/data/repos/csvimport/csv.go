package csvimport

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type CSVRepo interface {
	Create(dbc dbctx.Context, csv *types.CSV) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CSV, error)
	ExistsByDataHash(dbc dbctx.Context, hash string) (bool, error)
	List(dbc dbctx.Context, createdBy *uuid.UUID, page Page) ([]*types.CSV, int64, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type csvRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCSVRepo(db *gorm.DB, baseLog *logger.Logger) CSVRepo {
	return &csvRepo{db: db, log: baseLog.With("repo", "CSVRepo")}
}

func (r *csvRepo) Create(dbc dbctx.Context, csv *types.CSV) error {
	q := dbc.DB(r.db)
	if csv.ID == uuid.Nil {
		csv.ID = uuid.New()
	}
	if csv.CreatedAt.IsZero() {
		csv.CreatedAt = time.Now().UTC()
	}
	if err := q.Create(csv).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateData
		}
		return err
	}
	return nil
}

func (r *csvRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CSV, error) {
	q := dbc.DB(r.db)
	var out types.CSV
	if err := q.Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *csvRepo) ExistsByDataHash(dbc dbctx.Context, hash string) (bool, error) {
	q := dbc.DB(r.db)
	var count int64
	err := q.
		Model(&types.CSV{}).
		Where("data_hash = ?", hash).
		Count(&count).Error
	return count > 0, err
}

// List orders by creation time, newest first. The data column is not loaded.
func (r *csvRepo) List(dbc dbctx.Context, createdBy *uuid.UUID, page Page) ([]*types.CSV, int64, error) {
	q := dbc.DB(r.db)
	base := func() *gorm.DB {
		q := q.Model(&types.CSV{})
		if createdBy != nil {
			q = q.Where("created_by = ?", *createdBy)
		}
		return q
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.CSV
	err := base().Omit("data").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit()).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *csvRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	q := dbc.DB(r.db)
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	err := q.
		Model(&types.CSV{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil && IsUniqueViolation(err) {
		return ErrDuplicateData
	}
	return err
}

func (r *csvRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	q := dbc.DB(r.db)
	return q.Where("id = ?", id).Delete(&types.CSV{}).Error
}
