package record

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// Transaction boundaries install the open transaction into the context they
// hand to the body, so every store call inside the body (and anything the
// task body itself does through the same handle) shares it. Reads inside the
// boundary see uncommitted writes; a body error rolls everything back.

type sqlTxKey struct{}

// TxFromContext returns the transaction installed by a surrounding
// SQLiteStore.Transaction call, or false when none is open.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx, ok
}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqlTxKey{}, tx)
}

type gormTxKey struct{}

// GormTxFromContext returns the transactional handle installed by a
// surrounding MySQLStore.Transaction call, or false when none is open.
func GormTxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB)
	return tx, ok
}

func withGormTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, gormTxKey{}, tx)
}
