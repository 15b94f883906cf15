// file: internal/repo/permission_test.go
package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CMSCore/internal/core/domain"
)

func TestModulePermission(t *testing.T) {
	db := newTestDB(t)
	r := mustPermRepo(t, db)
	ctx := context.Background()

	t.Run("管理员建库即全开", func(t *testing.T) {
		p, err := r.ModulePermission(ctx, domain.AdministratorID)
		require.NoError(t, err)
		assert.True(t, p.Snapshot)
		assert.True(t, p.Record)
		assert.True(t, p.RemoteSetting)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := r.ModulePermission(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("第二次读取走缓存", func(t *testing.T) {
		uid := mustCreateUser(t, db, "cached")
		p1, err := r.ModulePermission(ctx, uid)
		require.NoError(t, err)

		// 绕过仓库直接改库，缓存未失效前读到的仍是旧值
		_, err = db.Exec(`UPDATE t_permission SET snapshot = 1 WHERE parent_id = ?`, uid)
		require.NoError(t, err)

		p2, err := r.ModulePermission(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, p1.Snapshot, p2.Snapshot)

		r.InvalidateCacheForUser(uid)
		p3, err := r.ModulePermission(ctx, uid)
		require.NoError(t, err)
		assert.True(t, p3.Snapshot)
	})
}

func TestUpdateModulePermission(t *testing.T) {
	db := newTestDB(t)
	r := mustPermRepo(t, db)
	ctx := context.Background()

	uid := mustCreateUser(t, db, "perm-upd")

	on := true
	err := r.UpdateModulePermission(ctx, uid, domain.PermissionUpdate{
		LiveView: &on,
		Playback: &on,
	})
	require.NoError(t, err)

	p, err := r.ModulePermission(ctx, uid)
	require.NoError(t, err)
	assert.True(t, p.LiveView)
	assert.True(t, p.Playback)
	// nil 字段保持不变
	assert.False(t, p.Snapshot)
	assert.False(t, p.DeviceManagement)
}

func TestUpdateChannelGrants(t *testing.T) {
	db := newTestDB(t)
	r := mustPermRepo(t, db)
	ctx := context.Background()

	uid := mustCreateUser(t, db, "grants")
	devID := mustAddDevice(t, db, "grant-dev", 2)
	chs := channelIDs(t, db, devID)

	t.Run("空入参不报错", func(t *testing.T) {
		require.NoError(t, r.UpdateChannelGrants(ctx, uid, nil))
		require.NoError(t, r.UpdateChannelGrants(ctx, 0,
			[]domain.GrantUpdate{{ChannelID: chs[0], Permission: true}}))
	})

	t.Run("重复授权不产生重复行", func(t *testing.T) {
		grants := []domain.GrantUpdate{
			{ChannelID: chs[0], Permission: true},
			{ChannelID: chs[1], Permission: true},
		}
		require.NoError(t, r.UpdateChannelGrants(ctx, uid, grants))
		require.NoError(t, r.UpdateChannelGrants(ctx, uid, grants))

		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_user_and_channel WHERE parent_id = ? AND channel_id = ?`, uid, chs[0]))
		assert.Equal(t, 2, countRows(t, db,
			`SELECT COUNT(*) FROM t_user_and_channel WHERE parent_id = ?`, uid))
	})

	t.Run("收回授权后不再出现在授权列表", func(t *testing.T) {
		require.NoError(t, r.UpdateChannelGrants(ctx, uid,
			[]domain.GrantUpdate{{ChannelID: chs[1], Permission: false}}))

		got, err := r.ChannelGrants(ctx, uid)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, chs[0], got[0].ChannelID)
		assert.True(t, got[0].Permission)
	})
}
