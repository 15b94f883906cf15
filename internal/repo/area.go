// Package repo file: internal/repo/area.go
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/session"
	"CMSCore/internal/store"
)

// AreaRepo 区域仓库
type AreaRepo struct {
	db *sql.DB
}

// NewAreaRepo 创建 AreaRepo 实例
func NewAreaRepo(db *sql.DB) *AreaRepo {
	return &AreaRepo{db: db}
}

func scanArea(scan func(dest ...any) error) (domain.Area, error) {
	var a domain.Area
	var mapName sql.NullString
	err := scan(&a.ID, &a.Name, &a.ParentID, &mapName)
	a.Map = mapName.String
	return a, err
}

// Add 新增区域并建立根用户关联（区域归属管理员），两步在一个批次事务内
func (r *AreaRepo) Add(ctx context.Context, name string) (int64, error) {
	var areaID int64
	batch := store.NewBatch(r.db, "add_area")
	err := batch.Run(ctx,
		func(ctx context.Context, tx *sql.Tx) error {
			res, err := store.Exec(ctx, tx, `INSERT INTO t_area (name) VALUES (?)`, name)
			if err != nil {
				return fmt.Errorf("新增区域 '%s' 失败: %w", name, err)
			}
			areaID, err = res.LastInsertId()
			return err
		},
		func(ctx context.Context, tx *sql.Tx) error {
			if _, err := store.Exec(ctx, tx,
				`INSERT INTO t_area_and_user (user_id, area_id) VALUES (?, ?)`,
				domain.AdministratorID, areaID); err != nil {
				return fmt.Errorf("关联区域 %d 与管理员失败: %w", areaID, err)
			}
			return nil
		},
	)
	if err != nil {
		return 0, err
	}
	return areaID, nil
}

// GetByName 按名称查询区域，未命中返回 ErrNotFound
func (r *AreaRepo) GetByName(ctx context.Context, name string) (*domain.Area, error) {
	a, err := scanArea(r.db.QueryRowContext(ctx,
		`SELECT rowid, name, parent_id, map FROM t_area WHERE name = ?`, name).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询区域 '%s' 失败: %w", name, err)
	}
	return &a, nil
}

// List 获取区域列表，根区域固定排在首位。
// 管理员看到全部区域；普通用户只看到其授权通道能回溯到的区域。
func (r *AreaRepo) List(ctx context.Context, sess *session.Session) ([]domain.Area, error) {
	root, err := scanArea(r.db.QueryRowContext(ctx,
		`SELECT rowid, name, parent_id, map FROM t_area WHERE rowid = ?`, domain.RootAreaID).Scan)
	if err != nil {
		return nil, fmt.Errorf("查询根区域失败: %w", err)
	}

	var rows *sql.Rows
	if sess.IsAdmin() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT rowid, name, parent_id, map FROM t_area
			WHERE rowid != ? ORDER BY rowid`, domain.RootAreaID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT DISTINCT a.rowid, a.name, a.parent_id, a.map
			FROM t_area a
			JOIN t_device b ON b.parent_id = a.rowid
			JOIN t_channel c ON c.parent_id = b.rowid
			JOIN t_user_and_channel d ON d.channel_id = c.rowid
			WHERE d.parent_id = ? AND d.permission = 1 AND a.rowid != ?
			ORDER BY a.rowid`, sess.UserID(), domain.RootAreaID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询区域列表失败: %w", err)
	}
	defer rows.Close()

	areas := []domain.Area{root}
	for rows.Next() {
		a, scanErr := scanArea(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("扫描区域行失败: %w", scanErr)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// Rename 修改区域名称
func (r *AreaRepo) Rename(ctx context.Context, areaID int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_area SET name = ? WHERE rowid = ?`, name, areaID)
	if err != nil {
		return fmt.Errorf("修改区域 %d 名称失败: %w", areaID, err)
	}
	return nil
}

// Delete 删除区域。根区域受保护；下属设备与区域-用户关联由删除触发器级联清理。
func (r *AreaRepo) Delete(ctx context.Context, areaID int64) error {
	if areaID == domain.RootAreaID {
		return ErrProtected
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM t_area WHERE rowid = ?`, areaID)
	if err != nil {
		return fmt.Errorf("删除区域 %d 失败: %w", areaID, err)
	}
	return nil
}

// Map 获取区域地图数据（本层视为不透明字符串）
func (r *AreaRepo) Map(ctx context.Context, areaID int64) (string, error) {
	var m sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT map FROM t_area WHERE rowid = ?`, areaID).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询区域 %d 地图失败: %w", areaID, err)
	}
	return m.String, nil
}

// SetMap 设置区域地图数据
func (r *AreaRepo) SetMap(ctx context.Context, areaID int64, mapData string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE t_area SET map = ? WHERE rowid = ?`, mapData, areaID)
	if err != nil {
		return fmt.Errorf("设置区域 %d 地图失败: %w", areaID, err)
	}
	return nil
}

// ClearAll 清空除根区域外的全部区域及全部设备，两步在一个批次事务内。
// 触发器保证通道、预置位与各关联行一并清理。
func (r *AreaRepo) ClearAll(ctx context.Context) error {
	stmts := []store.Statement{
		{SQL: `DELETE FROM t_area WHERE rowid != ?`, Args: []any{domain.RootAreaID}},
		{SQL: `DELETE FROM t_device`},
	}
	if _, err := store.RunStatements(ctx, r.db, "clear_area_and_device", stmts); err != nil {
		return fmt.Errorf("清空区域与设备失败: %w", err)
	}
	return nil
}
