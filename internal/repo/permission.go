// Package repo file: internal/repo/permission.go
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/store"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// PermissionRepo 模块权限与通道授权的仓库。
// 模块权限按用户缓存在带过期时间的 LRU 中，写操作后主动失效。
type PermissionRepo struct {
	db    *sql.DB
	cache *lru.LRU[int64, *domain.Permission]
}

// NewPermissionRepo 创建 PermissionRepo 实例。
// maxCacheEntries / defaultCacheTTL 非法时回退默认值。
func NewPermissionRepo(db *sql.DB, maxCacheEntries int, defaultCacheTTL time.Duration) (*PermissionRepo, error) {
	if db == nil {
		return nil, fmt.Errorf("PermissionRepo 初始化失败: db 实例不能为 nil")
	}
	if maxCacheEntries <= 0 {
		maxCacheEntries = 128 // 默认值
	}
	if defaultCacheTTL <= 0 {
		defaultCacheTTL = 5 * time.Minute // 默认值
	}
	return &PermissionRepo{
		db:    db,
		cache: lru.NewLRU[int64, *domain.Permission](maxCacheEntries, nil, defaultCacheTTL),
	}, nil
}

// InvalidateCacheForUser 手动使指定用户的模块权限缓存失效
func (r *PermissionRepo) InvalidateCacheForUser(userID int64) {
	r.cache.Remove(userID)
}

// ModulePermission 获取用户的 13 项模块权限，优先走缓存
func (r *PermissionRepo) ModulePermission(ctx context.Context, userID int64) (*domain.Permission, error) {
	if p, ok := r.cache.Get(userID); ok {
		return p, nil
	}

	var p domain.Permission
	err := r.db.QueryRowContext(ctx, `
		SELECT parent_id, snapshot, record, remote_download, patrol_setting, ptz_setting,
		       resource_management, playback, user_param, live_view, user_log,
		       electronic_map, device_management, remote_setting
		FROM t_permission WHERE parent_id = ?`, userID).
		Scan(&p.UserID, &p.Snapshot, &p.Record, &p.RemoteDownload, &p.PatrolSetting,
			&p.PTZSetting, &p.ResourceManagement, &p.Playback, &p.UserParam, &p.LiveView,
			&p.UserLog, &p.ElectronicMap, &p.DeviceManagement, &p.RemoteSetting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户 %d 模块权限失败: %w", userID, err)
	}

	r.cache.Add(userID, &p)
	return &p, nil
}

// ChannelGrants 获取用户已授权 (permission = 1) 的通道列表，缺行即无权限
func (r *PermissionRepo) ChannelGrants(ctx context.Context, userID int64) ([]domain.ChannelGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT parent_id, channel_id, permission
		FROM t_user_and_channel
		WHERE parent_id = ? AND permission = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("查询用户 %d 通道授权失败: %w", userID, err)
	}
	defer rows.Close()

	var grants []domain.ChannelGrant
	for rows.Next() {
		var g domain.ChannelGrant
		if err := rows.Scan(&g.UserID, &g.ChannelID, &g.Permission); err != nil {
			return nil, fmt.Errorf("扫描通道授权行失败: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// UpdateModulePermission 部分更新模块权限，nil 字段跳过；无可更新字段时直接返回
func (r *PermissionRepo) UpdateModulePermission(ctx context.Context, userID int64, u domain.PermissionUpdate) error {
	flags := []struct {
		column string
		value  *bool
	}{
		{"snapshot", u.Snapshot},
		{"record", u.Record},
		{"remote_download", u.RemoteDownload},
		{"patrol_setting", u.PatrolSetting},
		{"ptz_setting", u.PTZSetting},
		{"resource_management", u.ResourceManagement},
		{"playback", u.Playback},
		{"user_param", u.UserParam},
		{"live_view", u.LiveView},
		{"user_log", u.UserLog},
		{"electronic_map", u.ElectronicMap},
		{"device_management", u.DeviceManagement},
		{"remote_setting", u.RemoteSetting},
	}

	var updates []string
	var args []any
	for _, f := range flags {
		if f.value != nil {
			updates = append(updates, f.column+" = ?")
			args = append(args, *f.value)
		}
	}
	if len(updates) == 0 {
		return nil
	}

	args = append(args, userID)
	query := fmt.Sprintf("UPDATE t_permission SET %s WHERE parent_id = ?", strings.Join(updates, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("更新用户 %d 模块权限失败: %w", userID, err)
	}

	r.InvalidateCacheForUser(userID)
	return nil
}

// UpdateChannelGrants 逐通道更新用户的通道授权。
// 先尝试 UPDATE，影响 0 行（尚无授权行）时回退为 INSERT，保证每个
// 用户-通道组合至多一行。整组变更在一个批次事务内完成。
func (r *PermissionRepo) UpdateChannelGrants(ctx context.Context, userID int64, grants []domain.GrantUpdate) error {
	if userID == 0 || len(grants) == 0 {
		return nil
	}

	batch := store.NewBatch(r.db, "update_channel_grants")
	return batch.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, g := range grants {
			res, err := store.Exec(ctx, tx, `
				UPDATE t_user_and_channel
				SET permission = ?
				WHERE parent_id = ? AND channel_id = ?`,
				g.Permission, userID, g.ChannelID)
			if err != nil {
				return fmt.Errorf("更新用户 %d 通道 %d 授权失败: %w", userID, g.ChannelID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("获取受影响行数失败 (用户 %d 通道 %d): %w", userID, g.ChannelID, err)
			}
			if affected == 0 {
				if _, err := store.Exec(ctx, tx, `
					INSERT INTO t_user_and_channel (parent_id, channel_id, permission)
					VALUES (?, ?, ?)`,
					userID, g.ChannelID, g.Permission); err != nil {
					return fmt.Errorf("插入用户 %d 通道 %d 授权失败: %w", userID, g.ChannelID, err)
				}
			}
		}
		return nil
	})
}
