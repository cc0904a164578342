package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

// accessChecker lets the owner of a resource, or an admin, act on it.
type accessChecker struct {
	contributors repos.ContributorRepo
}

func (a accessChecker) allowed(dbc dbctx.Context, owner, user uuid.UUID) (bool, error) {
	if owner == user {
		return true, nil
	}
	if a.contributors == nil || user == uuid.Nil {
		return false, nil
	}
	c, err := a.contributors.GetByID(dbc, user)
	if err != nil {
		return false, fmt.Errorf("load contributor: %w", err)
	}
	return c != nil && c.IsAdmin, nil
}

// inTx runs fn inside a transaction unless dbc already carries one or there
// is no database.
func inTx(db *gorm.DB, dbc dbctx.Context, fn func(dbctx.Context) error) error {
	if db == nil {
		return fn(dbc)
	}
	return dbc.InTx(db, fn)
}
