package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// withTx stores an open transaction in the context so every query made
// through the same Database inside the callback joins it.
func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// conn returns the handle queries run on: the context's transaction
// when one is open, otherwise the base connection bound to ctx.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}
