// Package dbctx threads a request context and an optional transaction through
// repository calls.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func With(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// InTx runs fn inside one transaction on db. Nested calls reuse the open
// transaction through gorm's savepoints.
func InTx(ctx context.Context, db *gorm.DB, fn func(dbc Context) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Context{Ctx: ctx, Tx: tx})
	})
}

// InTx runs fn on the transaction already carried by c, or opens one on fallback.
func (c Context) InTx(fallback *gorm.DB, fn func(dbc Context) error) error {
	if c.Tx != nil {
		return fn(c)
	}
	return InTx(c.context(), fallback, fn)
}

// DB returns the carried transaction, or fallback, bound to the context.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx.WithContext(c.context())
	}
	return fallback.WithContext(c.context())
}

func (c Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}
