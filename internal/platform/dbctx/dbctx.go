package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the caller's context and, when set, the transaction every
// repo call made with it must join.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB picks Tx over base and scopes it to Ctx.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	q := c.Tx
	if q == nil {
		q = base
	}
	if c.Ctx == nil {
		return q.WithContext(context.Background())
	}
	return q.WithContext(c.Ctx)
}

// InTx runs fn inside a transaction. An existing Tx is reused so nested
// service calls commit or roll back together.
func (c Context) InTx(base *gorm.DB, fn func(Context) error) error {
	if c.Tx != nil {
		return fn(c)
	}
	return c.DB(base).Transaction(func(tx *gorm.DB) error {
		return fn(Context{Ctx: c.Ctx, Tx: tx})
	})
}
