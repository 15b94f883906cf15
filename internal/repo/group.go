// Package repo file: internal/repo/group.go
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/store"
)

// GroupRepo 通道分组仓库
type GroupRepo struct {
	db *sql.DB
}

// NewGroupRepo 创建 GroupRepo 实例
func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// Add 为用户新增一个分组，返回新分组 rowid
func (r *GroupRepo) Add(ctx context.Context, userID int64, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO t_group (parent_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("新增分组 '%s' 失败: %w", name, err)
	}
	return res.LastInsertId()
}

// Get 按用户与名称查询分组（不含通道），未命中返回 ErrNotFound
func (r *GroupRepo) Get(ctx context.Context, userID int64, name string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.QueryRowContext(ctx,
		`SELECT rowid, parent_id, name FROM t_group WHERE parent_id = ? AND name = ?`,
		userID, name).Scan(&g.ID, &g.UserID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询分组 '%s' 失败: %w", name, err)
	}
	return &g, nil
}

// List 返回用户的全部分组及各分组内的通道。
// 空分组也会返回，通道按加入分组的先后排序。
func (r *GroupRepo) List(ctx context.Context, userID int64) ([]domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.rowid, g.parent_id, g.name,
		       c.rowid, c.parent_id, c.serial, c.name
		FROM t_group g
		LEFT JOIN t_group_and_channel gc ON gc.group_id = g.rowid
		LEFT JOIN t_channel c ON c.rowid = gc.channel_id
		WHERE g.parent_id = ?
		ORDER BY g.rowid, gc.rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户 %d 分组列表失败: %w", userID, err)
	}
	defer rows.Close()

	groups := make([]domain.Group, 0)
	for rows.Next() {
		var g domain.Group
		var chID, chDevice, chSerial sql.NullInt64
		var chName sql.NullString
		if scanErr := rows.Scan(&g.ID, &g.UserID, &g.Name,
			&chID, &chDevice, &chSerial, &chName); scanErr != nil {
			return nil, fmt.Errorf("扫描分组行失败: %w", scanErr)
		}

		if len(groups) == 0 || groups[len(groups)-1].ID != g.ID {
			groups = append(groups, g)
		}
		if chID.Valid {
			cur := &groups[len(groups)-1]
			cur.Channels = append(cur.Channels, domain.Channel{
				ID:       chID.Int64,
				DeviceID: chDevice.Int64,
				Serial:   int(chSerial.Int64),
				Name:     chName.String,
			})
		}
	}
	return groups, rows.Err()
}

// Rename 修改分组名称
func (r *GroupRepo) Rename(ctx context.Context, groupID int64, name string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE t_group SET name = ? WHERE rowid = ?`, name, groupID); err != nil {
		return fmt.Errorf("修改分组 %d 名称失败: %w", groupID, err)
	}
	return nil
}

// Delete 删除分组，分组-通道关联行由触发器清理
func (r *GroupRepo) Delete(ctx context.Context, groupID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM t_group WHERE rowid = ?`, groupID); err != nil {
		return fmt.Errorf("删除分组 %d 失败: %w", groupID, err)
	}
	return nil
}

// AddChannels 批量向分组加入通道
func (r *GroupRepo) AddChannels(ctx context.Context, groupID int64, channelIDs []int64) error {
	if len(channelIDs) == 0 {
		return ErrEmptyInput
	}
	stmts := make([]store.Statement, 0, len(channelIDs))
	for _, id := range channelIDs {
		stmts = append(stmts, store.Statement{
			SQL:  `INSERT INTO t_group_and_channel (group_id, channel_id) VALUES (?, ?)`,
			Args: []any{groupID, id},
		})
	}
	if _, err := store.RunStatements(ctx, r.db, "add_group_channels", stmts); err != nil {
		return fmt.Errorf("分组 %d 添加通道失败: %w", groupID, err)
	}
	return nil
}

// RemoveChannels 单条语句批量移出分组内的通道，入参为空视为错误
func (r *GroupRepo) RemoveChannels(ctx context.Context, groupID int64, channelIDs []int64) error {
	if len(channelIDs) == 0 {
		return ErrEmptyInput
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(channelIDs)), ", ")
	args := make([]any, 0, len(channelIDs)+1)
	args = append(args, groupID)
	for _, id := range channelIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(
		`DELETE FROM t_group_and_channel WHERE group_id = ? AND channel_id IN (%s)`,
		placeholders)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("分组 %d 移除通道失败: %w", groupID, err)
	}
	return nil
}
