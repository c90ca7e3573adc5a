package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Transactor runs fn inside one database transaction. Implementations retry
// the whole function on transient contention errors, so fn must be free of
// side effects outside the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type TxOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger
}

type gormTransactor struct {
	db   *gorm.DB
	opts []RetryOption
}

// NewTransactor returns a Transactor running serializable transactions on db.
func NewTransactor(db *gorm.DB, o TxOptions) Transactor {
	opts := []RetryOption{}
	if o.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(o.MaxAttempts))
	}
	if o.BaseDelay > 0 {
		opts = append(opts, WithBaseDelay(o.BaseDelay))
	}
	if o.Logger != nil {
		opts = append(opts, WithLogger(o.Logger))
	}
	return &gormTransactor{db: db, opts: opts}
}

func (t *gormTransactor) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return Retry(ctx, func(ctx context.Context) error {
		return t.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}, t.opts...)
}
