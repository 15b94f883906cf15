// file: internal/repo/main_test.go
package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"CMSCore/internal/core/domain"
	"CMSCore/internal/schema"
	"CMSCore/internal/session"
)

// ============================================================================
//  共享测试辅助工具 (Shared Test Helpers)
// ============================================================================

// adminPwd 管理员初始密码（加密后的空密码占位值）
const adminPwd = "30f138b98bc1f7a96c2e049420e73e73"

// newTestDB 在临时目录里完整建库（全部表、触发器与基础数据），
// 返回可直接供各仓库使用的连接句柄。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()

	m, err := schema.InitializeIfAbsent(context.Background(),
		filepath.Join(dir, "data.db"), "默认区域", filepath.Join(dir, "save_files"))
	require.NoError(t, err, "测试建库失败")
	require.True(t, m.Ready())

	db := m.DB()
	t.Cleanup(func() { db.Close() })
	return db
}

// adminSession 返回一个已建立管理员账号的会话
func adminSession() *session.Session {
	s := session.New()
	s.Establish(&domain.Account{User: domain.User{
		ID:   domain.AdministratorID,
		Name: "admin",
		Pwd:  adminPwd,
	}})
	return s
}

// userSession 返回一个已建立普通用户账号的会话
func userSession(userID int64, name, pwd string) *session.Session {
	s := session.New()
	s.Establish(&domain.Account{User: domain.User{ID: userID, Name: name, Pwd: pwd}})
	return s
}

// mustCreateUser 建一个普通用户并返回其 rowid
func mustCreateUser(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	id, err := NewUserRepo(db).Create(context.Background(), name, "", adminPwd)
	require.NoError(t, err)
	return id
}

// mustAddDevice 以管理员身份添加一台 IPC 设备并返回其 rowid
func mustAddDevice(t *testing.T, db *sql.DB, name string, channelCount int) int64 {
	t.Helper()
	r := NewDeviceRepo(db)
	err := r.Add(context.Background(), adminSession(), []domain.DeviceItem{{
		AreaID:       domain.RootAreaID,
		EseeID:       "esee-" + name,
		IP:           "192.168.1.10",
		Name:         name,
		Port:         8000,
		LoginName:    "admin",
		ConnectMode:  0,
		Type:         domain.DeviceIPC,
		ChannelCount: channelCount,
	}})
	require.NoError(t, err)

	dev, err := r.GetByIdentity(context.Background(), name, "esee-"+name, "192.168.1.10")
	require.NoError(t, err)
	return dev.ID
}

// channelIDs 返回设备下全部通道的 rowid，按 serial 排序
func channelIDs(t *testing.T, db *sql.DB, deviceID int64) []int64 {
	t.Helper()
	rows, err := db.Query(
		`SELECT rowid FROM t_channel WHERE parent_id = ? ORDER BY serial`, deviceID)
	require.NoError(t, err)
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

// countRows 统计满足条件的行数
func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}
