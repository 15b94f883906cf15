// Package repo file: internal/repo/device.go
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/session"
	"CMSCore/internal/store"
)

// channelStatusColumns 是 ModifyChannelStatus 允许修改的列白名单。
// 列名来自调用方，必须经白名单校验后才能拼入语句。
var channelStatusColumns = map[string]struct{}{
	"is_wall":       {},
	"is_panorama":   {},
	"is_cruise":     {},
	"panorama_type": {},
	"type":          {},
	"name":          {},
}

// DeviceRepo 设备仓库，同时负责设备下属通道与预置位
type DeviceRepo struct {
	db       *sql.DB
	validate *validator.Validate
}

// NewDeviceRepo 创建 DeviceRepo 实例
func NewDeviceRepo(db *sql.DB) *DeviceRepo {
	return &DeviceRepo{db: db, validate: validator.New()}
}

const deviceColumns = `d.rowid, d.parent_id, d.eseeid, d.ip, d.name, d.port,
	d.login_name, d.pwd, d.connect_mode, d.type, d.ssid, d.ssid_pwd`

const channelColumns = `c.rowid, c.serial, c.is_wall, c.name, c.is_panorama,
	c.posi, c.type, c.is_cruise, c.panorama_type`

const presetColumns = `p.rowid, p.preset_name, p.preset_index,
	p.x1, p.y1, p.z1, p.x2, p.y2, p.z2, p.x3, p.y3, p.z3`

// deviceRow 是设备列表联表查询的单行扫描载体，通道与预置位允许为 NULL
type deviceRow struct {
	dev      domain.Device
	areaName sql.NullString

	chID       sql.NullInt64
	chSerial   sql.NullInt64
	chWall     sql.NullBool
	chName     sql.NullString
	chPanorama sql.NullBool
	chPosi     sql.NullString
	chType     sql.NullInt64
	chCruise   sql.NullBool
	chPanoType sql.NullInt64

	ppID    sql.NullInt64
	ppName  sql.NullString
	ppIndex sql.NullInt64
	ppX1    sql.NullFloat64
	ppY1    sql.NullFloat64
	ppZ1    sql.NullFloat64
	ppX2    sql.NullFloat64
	ppY2    sql.NullFloat64
	ppZ2    sql.NullFloat64
	ppX3    sql.NullFloat64
	ppY3    sql.NullFloat64
	ppZ3    sql.NullFloat64
}

func (row *deviceRow) deviceDests() []any {
	d := &row.dev
	return []any{&d.ID, &d.AreaID, &d.EseeID, &d.IP, &d.Name, &d.Port,
		&d.LoginName, &d.Pwd, &d.ConnectMode, &d.Type, &d.SSID, &d.SSIDPwd}
}

func (row *deviceRow) channelDests() []any {
	return []any{&row.chID, &row.chSerial, &row.chWall, &row.chName,
		&row.chPanorama, &row.chPosi, &row.chType, &row.chCruise, &row.chPanoType}
}

func (row *deviceRow) presetDests() []any {
	return []any{&row.ppID, &row.ppName, &row.ppIndex,
		&row.ppX1, &row.ppY1, &row.ppZ1,
		&row.ppX2, &row.ppY2, &row.ppZ2,
		&row.ppX3, &row.ppY3, &row.ppZ3}
}

func (row *deviceRow) channel() domain.Channel {
	return domain.Channel{
		ID:           row.chID.Int64,
		DeviceID:     row.dev.ID,
		Serial:       int(row.chSerial.Int64),
		IsWall:       row.chWall.Bool,
		Name:         row.chName.String,
		IsPanorama:   row.chPanorama.Bool,
		Posi:         row.chPosi.String,
		Type:         int(row.chType.Int64),
		IsCruise:     row.chCruise.Bool,
		PanoramaType: int(row.chPanoType.Int64),
	}
}

func (row *deviceRow) preset() domain.PresetPos {
	p := domain.PresetPos{
		ID:        row.ppID.Int64,
		ChannelID: row.chID.Int64,
		Name:      row.ppName.String,
		Index:     int(row.ppIndex.Int64),
	}
	p.X1, p.Y1, p.Z1 = row.ppX1.Float64, row.ppY1.Float64, row.ppZ1.Float64
	p.X2, p.Y2, p.Z2 = row.ppX2.Float64, row.ppY2.Float64, row.ppZ2.Float64
	p.X3, p.Y3, p.Z3 = row.ppX3.Float64, row.ppY3.Float64, row.ppZ3.Float64
	return p
}

// List 返回调用者可见的设备树（设备 -> 通道 -> 预置位）。
// 管理员看到全部设备；普通用户只看到其授权通道所在的设备，且只含授权通道，
// 并附带所属区域名称。两种形态都是通道内连接，没有通道的设备不出现在列表中。
// 结果按设备、通道序号、预置位 rowid 排序。
func (r *DeviceRepo) List(ctx context.Context, sess *session.Session) ([]domain.Device, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sess.IsAdmin() {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+deviceColumns+`, `+channelColumns+`, `+presetColumns+`
			FROM t_device d
			JOIN t_area_and_user au ON au.area_id = d.parent_id AND au.user_id = ?
			JOIN t_channel c ON c.parent_id = d.rowid
			LEFT JOIN t_preset_pos p ON p.preset_channel_id = c.rowid
			ORDER BY d.rowid, c.serial, p.rowid`, domain.AdministratorID)
	} else {
		rows, err = r.db.QueryContext(ctx, `
			SELECT `+deviceColumns+`, `+channelColumns+`, `+presetColumns+`, a.name
			FROM t_user_and_channel uc
			JOIN t_channel c ON c.rowid = uc.channel_id
			JOIN t_device d ON d.rowid = c.parent_id
			JOIN t_area a ON a.rowid = d.parent_id
			LEFT JOIN t_preset_pos p ON p.preset_channel_id = c.rowid
			WHERE uc.parent_id = ? AND uc.permission = 1
			ORDER BY d.rowid, c.serial, p.rowid`, sess.UserID())
	}
	if err != nil {
		return nil, fmt.Errorf("查询设备列表失败: %w", err)
	}
	defer rows.Close()

	withArea := !sess.IsAdmin()
	devices := make([]domain.Device, 0)
	for rows.Next() {
		var row deviceRow
		dests := append(row.deviceDests(), row.channelDests()...)
		dests = append(dests, row.presetDests()...)
		if withArea {
			dests = append(dests, &row.areaName)
		}
		if scanErr := rows.Scan(dests...); scanErr != nil {
			return nil, fmt.Errorf("扫描设备行失败: %w", scanErr)
		}
		row.dev.AreaName = row.areaName.String

		// 联表结果逐行归并进嵌套结构，依赖查询的排序保证
		if len(devices) == 0 || devices[len(devices)-1].ID != row.dev.ID {
			devices = append(devices, row.dev)
		}
		dev := &devices[len(devices)-1]

		if row.chID.Valid {
			if len(dev.Channels) == 0 || dev.Channels[len(dev.Channels)-1].ID != row.chID.Int64 {
				dev.Channels = append(dev.Channels, row.channel())
			}
			if row.ppID.Valid {
				ch := &dev.Channels[len(dev.Channels)-1]
				ch.Presets = append(ch.Presets, row.preset())
			}
		}
	}
	return devices, rows.Err()
}

// ListAll 返回全部设备行（不含通道），用于跨用户的设备巡检
func (r *DeviceRepo) ListAll(ctx context.Context) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM t_device d ORDER BY d.rowid`)
	if err != nil {
		return nil, fmt.Errorf("查询全部设备失败: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		var row deviceRow
		if scanErr := rows.Scan(row.deviceDests()...); scanErr != nil {
			return nil, fmt.Errorf("扫描设备行失败: %w", scanErr)
		}
		devices = append(devices, row.dev)
	}
	return devices, rows.Err()
}

// GetByIdentity 按名称、云ID 与 IP 三要素同时匹配命中已有设备，用于添加前查重。
// 未命中返回 ErrNotFound。
func (r *DeviceRepo) GetByIdentity(ctx context.Context, name, eseeid, ip string) (*domain.Device, error) {
	var row deviceRow
	err := r.db.QueryRowContext(ctx, `
		SELECT `+deviceColumns+` FROM t_device d
		WHERE d.name = ? AND d.eseeid = ? AND d.ip = ?`,
		name, eseeid, ip).Scan(row.deviceDests()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询设备 '%s' 失败: %w", name, err)
	}
	return &row.dev, nil
}

// channelSpecAt 取第 i 个通道的描述；未提供逐通道列表时按设备类型生成默认值
func channelSpecAt(item *domain.DeviceItem, i int) domain.ChannelSpec {
	if i < len(item.Chs) {
		return item.Chs[i]
	}
	spec := domain.ChannelSpec{Name: fmt.Sprintf("ch_%d", i+1)}
	if item.Type == domain.DeviceVRCam {
		spec.IsPanorama = 1
		spec.ChannelType = 1
	}
	return spec
}

// Add 批量添加设备。每台设备一个事务批次：设备行、serial 从 1 递增的通道行，
// 以及（调用者不是管理员时）每条通道的授权行。任一项入参非法则整体拒绝。
func (r *DeviceRepo) Add(ctx context.Context, sess *session.Session, items []domain.DeviceItem) error {
	if len(items) == 0 {
		return ErrEmptyInput
	}
	for i := range items {
		if err := r.validate.Struct(&items[i]); err != nil {
			return fmt.Errorf("设备 '%s' 入参校验失败: %w", items[i].Name, err)
		}
	}

	for i := range items {
		item := &items[i]
		batch := store.NewBatch(r.db, "add_device")
		err := batch.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
			res, err := store.Exec(ctx, tx, `
				INSERT INTO t_device
				(parent_id, eseeid, ip, name, port, login_name, pwd, connect_mode, type, ssid, ssid_pwd)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				item.AreaID, item.EseeID, item.IP, item.Name, item.Port,
				item.LoginName, item.Pwd, item.ConnectMode, int(item.Type),
				item.SSID, item.SSIDPwd)
			if err != nil {
				return fmt.Errorf("插入设备 '%s' 失败: %w", item.Name, err)
			}
			deviceID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			for n := 0; n < item.ChannelCount; n++ {
				spec := channelSpecAt(item, n)
				chRes, err := store.Exec(ctx, tx, `
					INSERT INTO t_channel (parent_id, serial, name, is_panorama, type)
					VALUES (?, ?, ?, ?, ?)`,
					deviceID, n+1, spec.Name, spec.IsPanorama, spec.ChannelType)
				if err != nil {
					return fmt.Errorf("插入设备 %d 通道 %d 失败: %w", deviceID, n+1, err)
				}
				if sess.IsAdmin() {
					continue
				}
				channelID, err := chRes.LastInsertId()
				if err != nil {
					return err
				}
				if _, err := store.Exec(ctx, tx, `
					INSERT INTO t_user_and_channel (parent_id, channel_id, permission)
					VALUES (?, ?, 1)`, sess.UserID(), channelID); err != nil {
					return fmt.Errorf("授权通道 %d 给用户 %d 失败: %w", channelID, sess.UserID(), err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Update 按新旧两份设备视图做差量修改：设备标量字段整体更新；通道按序号
// 逐一比对，多出的追加、少掉的按序号截断删除、变化的只更新变化字段。
// 截断删除触发通道删除触发器，预置位与授权行一并清理。
func (r *DeviceRepo) Update(ctx context.Context, oldInfo, newInfo *domain.DeviceInfo) error {
	if oldInfo == nil || newInfo == nil {
		return ErrEmptyInput
	}
	batch := store.NewBatch(r.db, "update_device")
	return batch.Run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := store.Exec(ctx, tx, `
			UPDATE t_device SET parent_id = ?, eseeid = ?, ip = ?, name = ?,
				port = ?, login_name = ?, pwd = ?, connect_mode = ?, type = ?,
				ssid = ?, ssid_pwd = ?
			WHERE rowid = ?`,
			newInfo.AreaID, newInfo.EseeID, newInfo.IP, newInfo.Name,
			newInfo.Port, newInfo.LoginName, newInfo.Pwd, newInfo.ConnectMode,
			int(newInfo.Type), newInfo.SSID, newInfo.SSIDPwd, oldInfo.ID); err != nil {
			return fmt.Errorf("更新设备 %d 失败: %w", oldInfo.ID, err)
		}

		for i, ch := range newInfo.Chs {
			if i >= len(oldInfo.Chs) {
				if _, err := store.Exec(ctx, tx, `
					INSERT INTO t_channel (parent_id, serial, name, is_panorama, type)
					VALUES (?, ?, ?, ?, ?)`,
					oldInfo.ID, i+1, ch.Name, ch.IsPanorama, ch.ChannelType); err != nil {
					return fmt.Errorf("追加设备 %d 通道 %d 失败: %w", oldInfo.ID, i+1, err)
				}
				continue
			}

			prev := oldInfo.Chs[i]
			var updates []string
			var args []any
			if ch.Name != prev.Name {
				updates = append(updates, "name = ?")
				args = append(args, ch.Name)
			}
			if ch.IsPanorama != prev.IsPanorama {
				updates = append(updates, "is_panorama = ?")
				args = append(args, ch.IsPanorama)
			}
			if ch.ChannelType != prev.ChannelType {
				updates = append(updates, "type = ?")
				args = append(args, ch.ChannelType)
			}
			if len(updates) == 0 {
				continue
			}
			args = append(args, prev.ID)
			query := fmt.Sprintf("UPDATE t_channel SET %s WHERE rowid = ?", strings.Join(updates, ", "))
			if _, err := store.Exec(ctx, tx, query, args...); err != nil {
				return fmt.Errorf("更新通道 %d 失败: %w", prev.ID, err)
			}
		}

		if len(oldInfo.Chs) > len(newInfo.Chs) {
			if _, err := store.Exec(ctx, tx,
				`DELETE FROM t_channel WHERE parent_id = ? AND serial > ?`,
				oldInfo.ID, len(newInfo.Chs)); err != nil {
				return fmt.Errorf("裁剪设备 %d 通道失败: %w", oldInfo.ID, err)
			}
		}
		return nil
	})
}

// Delete 删除设备，下属通道、预置位与授权行由触发器级联清理
func (r *DeviceRepo) Delete(ctx context.Context, deviceID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM t_device WHERE rowid = ?`, deviceID); err != nil {
		return fmt.Errorf("删除设备 %d 失败: %w", deviceID, err)
	}
	return nil
}

// SetChannelPositions 批量写入通道在电子地图上的位置坐标
func (r *DeviceRepo) SetChannelPositions(ctx context.Context, positions []domain.ChannelPosition) error {
	if len(positions) == 0 {
		return nil
	}
	stmts := make([]store.Statement, 0, len(positions))
	for _, p := range positions {
		stmts = append(stmts, store.Statement{
			SQL:  `UPDATE t_channel SET posi = ? WHERE rowid = ?`,
			Args: []any{fmt.Sprintf("x:%d;y:%d", p.X, p.Y), p.ChannelID},
		})
	}
	if _, err := store.RunStatements(ctx, r.db, "set_channel_posi", stmts); err != nil {
		return fmt.Errorf("写入通道位置失败: %w", err)
	}
	return nil
}

// ClearChannelPositions 批量清空通道的地图位置
func (r *DeviceRepo) ClearChannelPositions(ctx context.Context, channelIDs []int64) error {
	if len(channelIDs) == 0 {
		return nil
	}
	stmts := make([]store.Statement, 0, len(channelIDs))
	for _, id := range channelIDs {
		stmts = append(stmts, store.Statement{
			SQL:  `UPDATE t_channel SET posi = '' WHERE rowid = ?`,
			Args: []any{id},
		})
	}
	if _, err := store.RunStatements(ctx, r.db, "clear_channel_posi", stmts); err != nil {
		return fmt.Errorf("清空通道位置失败: %w", err)
	}
	return nil
}

// ModifyChannelStatus 修改通道的某个状态列，列名须在白名单内
func (r *DeviceRepo) ModifyChannelStatus(ctx context.Context, channelID int64, column string, value any) error {
	if _, ok := channelStatusColumns[column]; !ok {
		return fmt.Errorf("不允许修改的通道列: %s", column)
	}
	query := fmt.Sprintf("UPDATE t_channel SET %s = ? WHERE rowid = ?", column)
	if _, err := r.db.ExecContext(ctx, query, value, channelID); err != nil {
		return fmt.Errorf("修改通道 %d 状态失败: %w", channelID, err)
	}
	return nil
}

// SetPresetPos 为设备内指定序号的通道新增一条预置位，返回新行 rowid。
// 通道不存在时返回 ErrNotFound。
func (r *DeviceRepo) SetPresetPos(ctx context.Context, args *domain.PresetArgs) (int64, error) {
	var channelID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT rowid FROM t_channel WHERE parent_id = ? AND serial = ?`,
		args.DeviceID, args.Serial).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("查询设备 %d 通道 %d 失败: %w", args.DeviceID, args.Serial, err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO t_preset_pos
		(preset_channel_id, preset_name, preset_index, x1, y1, z1, x2, y2, z2, x3, y3, z3)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		channelID, args.Name, args.Index,
		args.X1, args.Y1, args.Z1,
		args.X2, args.Y2, args.Z2,
		args.X3, args.Y3, args.Z3)
	if err != nil {
		return 0, fmt.Errorf("插入预置位 '%s' 失败: %w", args.Name, err)
	}
	return res.LastInsertId()
}

// DeletePresetPos 删除一条预置位
func (r *DeviceRepo) DeletePresetPos(ctx context.Context, presetID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM t_preset_pos WHERE rowid = ?`, presetID); err != nil {
		return fmt.Errorf("删除预置位 %d 失败: %w", presetID, err)
	}
	return nil
}
