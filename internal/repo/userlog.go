// Package repo file: internal/repo/userlog.go
package repo

import (
	"context"
	"database/sql"
	"fmt"

	"CMSCore/internal/core/domain"
)

// LogRepo 用户日志仓库，日志只增不改
type LogRepo struct {
	db *sql.DB
}

// NewLogRepo 创建 LogRepo 实例
func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{db: db}
}

// Append 追加一条日志。登录类日志不挂区域，area 强制写 0。
func (r *LogRepo) Append(ctx context.Context, entry *domain.UserLogEntry) error {
	if entry == nil {
		return ErrEmptyInput
	}
	area := entry.AreaID
	if entry.Type == domain.LogLogin {
		area = 0
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO t_user_log (parent_id, type, time, area, description) VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, int(entry.Type), entry.Time, area, entry.Description)
	if err != nil {
		return fmt.Errorf("写入用户日志失败: %w", err)
	}
	return nil
}

// allAreasCond 命中全部区域的范围条件，登录日志的 area 0 也被覆盖
const allAreasCond = ` AND l.area < (SELECT IFNULL(MAX(rowid), 0) + 1 FROM t_area)`

// List 按条件查询全部用户的日志，时间倒序，携带用户名。
// 类型取 LogAll 时不按类型过滤。区域条件按日志类型分三种形态：
// 登录日志不挂区域，忽略区域条件；报警日志固定查全部区域；
// 其余类型在 Area 取 AreaAll 时查全部区域，否则按区域精确过滤。
func (r *LogRepo) List(ctx context.Context, filter *domain.LogFilter) ([]domain.UserLogEntry, error) {
	if filter == nil {
		return nil, ErrEmptyInput
	}

	query := `
		SELECT l.rowid, l.parent_id, u.name, l.type, l.time, l.area, l.description
		FROM t_user_log l
		JOIN t_user u ON u.rowid = l.parent_id
		WHERE l.time >= ? AND l.time <= ?
		  AND l.description LIKE ?`
	args := []any{filter.StartTime, filter.EndTime, "%" + filter.KeyWords + "%"}

	if filter.Type == domain.LogAll {
		query += ` AND 0 < l.type`
	} else {
		query += ` AND l.type = ?`
		args = append(args, int(filter.Type))
	}

	switch {
	case filter.Type == domain.LogLogin:
		// 登录日志无区域条件
	case filter.Type == domain.LogAlarm || filter.Area == domain.AreaAll:
		query += allAreasCond
	default:
		query += ` AND l.area = ?`
		args = append(args, filter.Area)
	}

	query += ` ORDER BY l.time DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询用户日志失败: %w", err)
	}
	defer rows.Close()

	var entries []domain.UserLogEntry
	for rows.Next() {
		var e domain.UserLogEntry
		var desc sql.NullString
		if scanErr := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Type,
			&e.Time, &e.AreaID, &desc); scanErr != nil {
			return nil, fmt.Errorf("扫描日志行失败: %w", scanErr)
		}
		e.Description = desc.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
