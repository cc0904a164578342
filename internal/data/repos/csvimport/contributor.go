package csvimport

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type ContributorRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Contributor, error)
	Upsert(dbc dbctx.Context, c *types.Contributor) error
}

type contributorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContributorRepo(db *gorm.DB, baseLog *logger.Logger) ContributorRepo {
	return &contributorRepo{db: db, log: baseLog.With("repo", "ContributorRepo")}
}

func (r *contributorRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Contributor, error) {
	q := dbc.DB(r.db)
	var out types.Contributor
	if err := q.Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *contributorRepo) Upsert(dbc dbctx.Context, c *types.Contributor) error {
	q := dbc.DB(r.db)
	return q.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "is_admin"}),
		}).
		Create(c).Error
}
