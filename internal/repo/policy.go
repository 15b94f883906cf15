// Package repo file: internal/repo/policy.go
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/store"
)

// PolicyRepo 轮巡策略仓库
type PolicyRepo struct {
	db *sql.DB
}

// NewPolicyRepo 创建 PolicyRepo 实例
func NewPolicyRepo(db *sql.DB) *PolicyRepo {
	return &PolicyRepo{db: db}
}

// Save 保存轮巡策略并重建其通道绑定，返回策略 rowid。
// args.PolicyID 为 0 时新增策略；否则更新策略本体并以新绑定整体替换旧绑定。
func (r *PolicyRepo) Save(ctx context.Context, args *domain.PolicyArgs) (int64, error) {
	if args == nil {
		return 0, ErrEmptyInput
	}
	policyID := args.PolicyID
	batch := store.NewBatch(r.db, "save_policy")
	err := batch.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if policyID == 0 {
			res, err := store.Exec(ctx, tx,
				`INSERT INTO t_policy (name, interval, screen) VALUES (?, ?, ?)`,
				args.Name, args.Interval, args.Screen)
			if err != nil {
				return fmt.Errorf("新增策略 '%s' 失败: %w", args.Name, err)
			}
			policyID, err = res.LastInsertId()
			if err != nil {
				return err
			}
		} else {
			if _, err := store.Exec(ctx, tx,
				`UPDATE t_policy SET name = ?, interval = ?, screen = ? WHERE rowid = ?`,
				args.Name, args.Interval, args.Screen, policyID); err != nil {
				return fmt.Errorf("更新策略 %d 失败: %w", policyID, err)
			}
			if _, err := store.Exec(ctx, tx,
				`DELETE FROM t_policy_and_channel WHERE parent_id = ?`, policyID); err != nil {
				return fmt.Errorf("清理策略 %d 旧绑定失败: %w", policyID, err)
			}
		}

		for _, ch := range args.Channels {
			if _, err := store.Exec(ctx, tx,
				`INSERT INTO t_policy_and_channel (parent_id, channel_id, screen_number) VALUES (?, ?, ?)`,
				policyID, ch.ChannelID, ch.Index); err != nil {
				return fmt.Errorf("绑定策略 %d 通道 %d 失败: %w", policyID, ch.ChannelID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return policyID, nil
}

// Delete 删除策略本体。
// 策略-通道绑定行没有对应的删除触发器，调用方需知悉残留行不参与任何查询结果。
func (r *PolicyRepo) Delete(ctx context.Context, policyID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM t_policy WHERE rowid = ?`, policyID); err != nil {
		return fmt.Errorf("删除策略 %d 失败: %w", policyID, err)
	}
	return nil
}

// List 返回全部策略及各自的通道绑定，绑定按窗口序号排序
func (r *PolicyRepo) List(ctx context.Context) ([]domain.Policy, []domain.PolicyChannel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rowid, name, interval, screen FROM t_policy ORDER BY rowid`)
	if err != nil {
		return nil, nil, fmt.Errorf("查询策略列表失败: %w", err)
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		var p domain.Policy
		var name sql.NullString
		if scanErr := rows.Scan(&p.ID, &name, &p.Interval, &p.Screen); scanErr != nil {
			return nil, nil, fmt.Errorf("扫描策略行失败: %w", scanErr)
		}
		p.Name = name.String
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	linkRows, err := r.db.QueryContext(ctx, `
		SELECT pc.parent_id, pc.channel_id, pc.screen_number
		FROM t_policy_and_channel pc
		JOIN t_policy p ON p.rowid = pc.parent_id
		ORDER BY pc.parent_id, pc.screen_number`)
	if err != nil {
		return nil, nil, fmt.Errorf("查询策略通道绑定失败: %w", err)
	}
	defer linkRows.Close()

	var links []domain.PolicyChannel
	for linkRows.Next() {
		var l domain.PolicyChannel
		if scanErr := linkRows.Scan(&l.PolicyID, &l.ChannelID, &l.ScreenNumber); scanErr != nil {
			return nil, nil, fmt.Errorf("扫描策略绑定行失败: %w", scanErr)
		}
		links = append(links, l)
	}
	return policies, links, linkRows.Err()
}
