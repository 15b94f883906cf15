// Package repo file: internal/repo/registry.go
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"CMSCore/internal/session"
)

// Registry 把全部仓库与会话聚合为一个可整体注入的依赖包
type Registry struct {
	Session    *session.Session
	Users      *UserRepo
	Areas      *AreaRepo
	Devices    *DeviceRepo
	Groups     *GroupRepo
	Policies   *PolicyRepo
	Logs       *LogRepo
	Permission *PermissionRepo

	db *sql.DB
}

// NewRegistry 基于同一个连接句柄构建全套仓库
func NewRegistry(db *sql.DB, sess *session.Session, perm *PermissionRepo) *Registry {
	return &Registry{
		Session:    sess,
		Users:      NewUserRepo(db),
		Areas:      NewAreaRepo(db),
		Devices:    NewDeviceRepo(db),
		Groups:     NewGroupRepo(db),
		Policies:   NewPolicyRepo(db),
		Logs:       NewLogRepo(db),
		Permission: perm,
		db:         db,
	}
}

// Counts 数据库里主要实体的行数，启动时用于自检输出
type Counts struct {
	Areas   int64
	Devices int64
	Users   int64
}

// Stats 统计主要实体行数
func (r *Registry) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dest  *int64
	}{
		{"t_area", &c.Areas},
		{"t_device", &c.Devices},
		{"t_user", &c.Users},
	} {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", q.table)
		if err := r.db.QueryRowContext(ctx, query).Scan(q.dest); err != nil {
			return Counts{}, fmt.Errorf("统计 %s 行数失败: %w", q.table, err)
		}
	}
	return c, nil
}
