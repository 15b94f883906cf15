// Package schema 负责首次运行时创建全部表/触发器并写入基础数据
// internal/schema/schema.go
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/store"
)

// placeholderPwd 管理员初始密码（调用方加密后的空密码占位值）。
// 本层不做哈希，只存储比对。
const placeholderPwd = "30f138b98bc1f7a96c2e049420e73e73"

// Manager 建库管理器。
// 数据库文件已存在时不做任何 DDL，Ready 立即为真。
type Manager struct {
	db    *sql.DB
	ready atomic.Bool
}

// Ready 表示建库（含基础数据写入）是否已完成，完成前不应发起其他仓库调用
func (m *Manager) Ready() bool { return m.ready.Load() }

// DB 返回底层连接句柄
func (m *Manager) DB() *sql.DB { return m.db }

// InitializeIfAbsent 连接数据库；文件不存在时先创建文件，再按固定顺序建表、
// 建触发器并写入基础数据。
//
// 已知限制（沿袭自原设计，此处如实记录而非悄悄修补）：DDL 按序逐条执行，
// 任一条失败会中止后续步骤，但已创建的表不会被回滚。首次建库在实践中
// 近似全有或全无，但没有技术上的保证。基础数据写入则在单个事务内完成。
func InitializeIfAbsent(ctx context.Context, dbPath, defaultArea, saveRoot string) (*Manager, error) {
	_, statErr := os.Stat(dbPath)
	exists := statErr == nil

	if !exists {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{db: db}
	if exists {
		m.ready.Store(true)
		return m, nil
	}

	if err := m.createAll(ctx, saveRoot); err != nil {
		return nil, err
	}
	if err := m.seedBaseData(ctx, defaultArea); err != nil {
		return nil, err
	}
	m.ready.Store(true)
	slog.Info("数据库首次建库完成", "path", dbPath)
	return m, nil
}

// createAll 按依赖顺序创建全部表与触发器：先独立表，触发器最后
func (m *Manager) createAll(ctx context.Context, saveRoot string) error {
	for i, ddl := range createStatements(saveRoot) {
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			// 中止剩余步骤，已建表不回滚（见 InitializeIfAbsent 注释）
			slog.Error("建库 DDL 执行失败，中止剩余步骤", "step", i+1, "error", err)
			return fmt.Errorf("建库第 %d 条 DDL 失败: %w", i+1, err)
		}
	}
	return nil
}

// seedBaseData 写入基础数据：根区域、根区域与管理员的关联、管理员账号，
// 并把插入触发器默认关闭的管理员权限开关整体置为开启
func (m *Manager) seedBaseData(ctx context.Context, defaultArea string) error {
	stmts := []store.Statement{
		{SQL: `INSERT INTO t_area (name) VALUES (?)`, Args: []any{defaultArea}},
		{SQL: `INSERT INTO t_area_and_user (user_id, area_id) VALUES (1, 1)`},
		{SQL: `INSERT INTO t_user (name, pwd) VALUES ('admin', ?)`, Args: []any{placeholderPwd}},
		{SQL: `UPDATE t_permission
		       SET snapshot = 1, record = 1, remote_download = 1, patrol_setting = 1,
		           ptz_setting = 1, resource_management = 1, playback = 1, user_param = 1,
		           live_view = 1, user_log = 1, electronic_map = 1, device_management = 1,
		           remote_setting = 1
		       WHERE parent_id = ?`, Args: []any{domain.AdministratorID}},
	}
	if _, err := store.RunStatements(ctx, m.db, "seed_base_data", stmts); err != nil {
		return fmt.Errorf("写入基础数据失败: %w", err)
	}
	return nil
}

// createStatements 返回固定顺序的建库语句。
// saveRoot 用于 t_user_param 各路径列的默认值。
func createStatements(saveRoot string) []string {
	record := filepath.Join(saveRoot, "record")
	snapshot := filepath.Join(saveRoot, "snapshot")
	videoDownload := filepath.Join(saveRoot, "video_download")
	userlog := filepath.Join(saveRoot, "userlog")

	return []string{
		`CREATE TABLE t_area (
			name      NVarchar(50) NOT NULL,
			parent_id Integer DEFAULT 1,
			map       NVarchar(50),
			reserve2  Integer DEFAULT 0
		)`,

		`CREATE TABLE t_area_and_user (
			user_id Integer,
			area_id Integer
		)`,

		`CREATE TABLE t_channel (
			parent_id     Integer NOT NULL,
			serial        Integer,
			is_wall       Int2 DEFAULT 1,
			name          NVarchar(30),
			is_panorama   Int2 DEFAULT 0,
			posi          NVarchar(30),
			type          Integer DEFAULT 0,
			is_cruise     Int2 DEFAULT 0,
			panorama_type Integer DEFAULT 1
		)`,

		`CREATE TABLE t_device (
			parent_id    Integer NOT NULL,
			eseeid       Varchar(35),
			ip           Varchar(200),
			name         NVarchar(50),
			port         Integer,
			login_name   NVarchar(20),
			pwd          Varchar(200),
			connect_mode Int2,
			type         Integer DEFAULT 0,
			ssid         NVarchar(50),
			ssid_pwd     NVarchar(200)
		)`,

		`CREATE TABLE t_group (
			parent_id Integer NOT NULL,
			name      NVarchar(50) NOT NULL,
			reserve1  NVarchar(50),
			reserve2  Integer DEFAULT 0
		)`,

		`CREATE TABLE t_group_and_channel (
			group_id   Integer NOT NULL,
			channel_id Integer NOT NULL
		)`,

		// 13 个开关全部默认关闭；管理员在 seedBaseData 中被整体置为开启
		`CREATE TABLE t_permission (
			parent_id           Integer NOT NULL,
			snapshot            Int2 DEFAULT 0,
			record              Int2 DEFAULT 0,
			remote_download     Int2 DEFAULT 0,
			patrol_setting      Int2 DEFAULT 0,
			ptz_setting         Int2 DEFAULT 0,
			resource_management Int2 DEFAULT 0,
			playback            Int2 DEFAULT 0,
			user_param          Int2 DEFAULT 0,
			live_view           Int2 DEFAULT 0,
			user_log            Int2 DEFAULT 0,
			electronic_map      Int2 DEFAULT 0,
			device_management   Int2 DEFAULT 0,
			remote_setting      Int2 DEFAULT 0
		)`,

		`CREATE TABLE t_policy (
			name     NVarchar(20),
			interval Integer,
			screen   Integer DEFAULT 0
		)`,

		`CREATE TABLE t_policy_and_channel (
			parent_id     Integer,
			channel_id    Integer,
			screen_number Integer
		)`,

		`CREATE TABLE t_user (
			name                NVarchar(50) NOT NULL,
			remark              NVarchar(50) DEFAULT '',
			pwd                 Varchar(200),
			remember_pwd        Int2 DEFAULT 0,
			auto_login          Int2 DEFAULT 0,
			last_login_time     Integer DEFAULT 0,
			last_exit_time      Integer DEFAULT 0,
			is_first_time_login Int2 DEFAULT 1,
			reserve1            NVarchar(50),
			reserve2            NVarchar(50),
			reserve3            Integer DEFAULT 0
		)`,

		fmt.Sprintf(`CREATE TABLE t_user_param (
			parent_id           Integer NOT NULL,
			record_path         NVarchar(200) DEFAULT '%s',
			snapshot_path       NVarchar(200) DEFAULT '%s',
			video_download_path NVarchar(200) DEFAULT '%s',
			userlog_path        NVarchar(200) DEFAULT '%s',
			timeline_scale      Integer DEFAULT 120
		)`, record, snapshot, videoDownload, userlog),

		`CREATE TABLE t_user_and_channel (
			parent_id  Integer NOT NULL,
			channel_id Integer NOT NULL,
			permission Integer DEFAULT 0
		)`,

		`CREATE TABLE t_user_log (
			parent_id   Integer,
			type        Integer,
			time        Integer,
			area        Integer,
			description NVarchar(200)
		)`,

		`CREATE TABLE t_preset_pos (
			preset_channel_id Integer NOT NULL,
			preset_name       NVarchar(50) NOT NULL,
			preset_index      Integer,
			x1 REAL, y1 REAL, z1 REAL,
			x2 REAL, y2 REAL, z2 REAL,
			x3 REAL, y3 REAL, z3 REAL
		)`,

		`CREATE TRIGGER tr_delete_area
		 BEFORE DELETE ON t_area
		 FOR EACH ROW
		 BEGIN
		     DELETE FROM t_device WHERE parent_id = old.rowid;
		     DELETE FROM t_area_and_user WHERE area_id = old.rowid;
		 END`,

		`CREATE TRIGGER tr_delete_channel
		 BEFORE DELETE ON t_channel
		 FOR EACH ROW
		 BEGIN
		     DELETE FROM t_group_and_channel WHERE channel_id = old.rowid;
		     DELETE FROM t_user_and_channel WHERE channel_id = old.rowid;
		     DELETE FROM t_preset_pos WHERE preset_channel_id = old.rowid;
		 END`,

		`CREATE TRIGGER tr_delete_device
		 BEFORE DELETE ON t_device
		 FOR EACH ROW
		 BEGIN
		     DELETE FROM t_channel WHERE parent_id = old.rowid;
		 END`,

		`CREATE TRIGGER tr_delete_group
		 BEFORE DELETE ON t_group
		 FOR EACH ROW
		 BEGIN
		     DELETE FROM t_group_and_channel WHERE group_id = old.rowid;
		 END`,

		`CREATE TRIGGER tr_delete_user
		 BEFORE DELETE ON t_user
		 FOR EACH ROW
		 BEGIN
		     DELETE FROM t_permission WHERE parent_id = old.rowid;
		     DELETE FROM t_area_and_user WHERE user_id = old.rowid;
		     DELETE FROM t_user_param WHERE parent_id = old.rowid;
		     DELETE FROM t_group WHERE parent_id = old.rowid;
		     DELETE FROM t_user_and_channel WHERE parent_id = old.rowid;
		 END`,

		`CREATE TRIGGER tr_insert_user
		 AFTER INSERT ON t_user
		 FOR EACH ROW
		 BEGIN
		     INSERT INTO t_permission (parent_id) VALUES (new.rowid);
		     INSERT INTO t_user_param (parent_id) VALUES (new.rowid);
		 END`,
	}
}
