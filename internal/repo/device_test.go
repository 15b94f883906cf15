// file: internal/repo/device_test.go
package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CMSCore/internal/core/domain"
)

func TestDeviceAdd(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	t.Run("入参校验失败整体拒绝", func(t *testing.T) {
		err := r.Add(ctx, adminSession(), []domain.DeviceItem{{
			AreaID: domain.RootAreaID, EseeID: "e1", IP: "not-an-ip", Name: "bad",
			Port: 8000, LoginName: "admin", ChannelCount: 1,
		}})
		require.Error(t, err)
		assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_device`))
	})

	t.Run("空入参", func(t *testing.T) {
		assert.ErrorIs(t, r.Add(ctx, adminSession(), nil), ErrEmptyInput)
	})

	t.Run("通道序号从1递增且带默认命名", func(t *testing.T) {
		id := mustAddDevice(t, db, "nvr1", 3)

		rows, err := db.Query(
			`SELECT serial, name, is_wall, panorama_type FROM t_channel WHERE parent_id = ? ORDER BY serial`, id)
		require.NoError(t, err)
		defer rows.Close()

		serial := 0
		for rows.Next() {
			serial++
			var s, isWall, panoType int
			var name string
			require.NoError(t, rows.Scan(&s, &name, &isWall, &panoType))
			assert.Equal(t, serial, s)
			assert.Contains(t, name, "ch_")
			assert.Equal(t, 1, isWall)
			assert.Equal(t, 1, panoType)
		}
		assert.Equal(t, 3, serial)
	})

	t.Run("VR设备默认全景通道", func(t *testing.T) {
		err := r.Add(ctx, adminSession(), []domain.DeviceItem{{
			AreaID: domain.RootAreaID, EseeID: "vr1", IP: "10.0.0.30", Name: "vrcam",
			Port: 8000, LoginName: "admin", Type: domain.DeviceVRCam, ChannelCount: 1,
		}})
		require.NoError(t, err)

		dev, err := r.GetByIdentity(ctx, "vrcam", "vr1", "10.0.0.30")
		require.NoError(t, err)
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE parent_id = ? AND is_panorama = 1 AND type = 1`, dev.ID))
	})

	t.Run("普通用户添加自动授权全部通道", func(t *testing.T) {
		uid := mustCreateUser(t, db, "installer")
		sess := userSession(uid, "installer", adminPwd)

		err := r.Add(ctx, sess, []domain.DeviceItem{{
			AreaID: domain.RootAreaID, EseeID: "e5", IP: "10.0.0.5", Name: "dev5",
			Port: 8000, LoginName: "admin", ChannelCount: 2,
		}})
		require.NoError(t, err)

		dev, err := r.GetByIdentity(ctx, "dev5", "e5", "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, 2, countRows(t, db, `
			SELECT COUNT(*) FROM t_user_and_channel uc
			JOIN t_channel c ON c.rowid = uc.channel_id
			WHERE uc.parent_id = ? AND c.parent_id = ? AND uc.permission = 1`, uid, dev.ID))
	})
}

func TestDeviceGetByIdentity(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	mustAddDevice(t, db, "known", 1)

	t.Run("三要素同时匹配才命中", func(t *testing.T) {
		dev, err := r.GetByIdentity(ctx, "known", "esee-known", "192.168.1.10")
		require.NoError(t, err)
		assert.Equal(t, "known", dev.Name)
	})

	t.Run("任一要素不符视为未命中", func(t *testing.T) {
		_, err := r.GetByIdentity(ctx, "known", "wrong-eseeid", "192.168.1.10")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = r.GetByIdentity(ctx, "known", "esee-known", "10.0.0.99")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("未命中", func(t *testing.T) {
		_, err := r.GetByIdentity(ctx, "missing", "", "")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeviceList(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	d1 := mustAddDevice(t, db, "cam-a", 2)
	mustAddDevice(t, db, "cam-b", 1)

	// 给 cam-a 的 1 号通道挂一个预置位
	_, err := r.SetPresetPos(ctx, &domain.PresetArgs{
		DeviceID: d1, Serial: 1, Name: "门口", Index: 1, X1: 0.5, Y1: 0.5,
	})
	require.NoError(t, err)

	t.Run("管理员看到全部设备及嵌套通道与预置位", func(t *testing.T) {
		devices, err := r.List(ctx, adminSession())
		require.NoError(t, err)
		require.Len(t, devices, 2)

		assert.Equal(t, "cam-a", devices[0].Name)
		require.Len(t, devices[0].Channels, 2)
		assert.Equal(t, 1, devices[0].Channels[0].Serial)
		assert.Equal(t, 2, devices[0].Channels[1].Serial)
		require.Len(t, devices[0].Channels[0].Presets, 1)
		assert.Equal(t, "门口", devices[0].Channels[0].Presets[0].Name)
		assert.Empty(t, devices[0].Channels[1].Presets)

		assert.Equal(t, "cam-b", devices[1].Name)
		require.Len(t, devices[1].Channels, 1)
	})

	t.Run("没有授权的普通用户看到空列表", func(t *testing.T) {
		uid := mustCreateUser(t, db, "nobody-sees")
		devices, err := r.List(ctx, userSession(uid, "nobody-sees", adminPwd))
		require.NoError(t, err)
		assert.Empty(t, devices)
	})

	t.Run("普通用户只看到授权通道并携带区域名称", func(t *testing.T) {
		uid := mustCreateUser(t, db, "partial")
		chs := channelIDs(t, db, d1)
		require.NoError(t, mustPermRepo(t, db).UpdateChannelGrants(ctx, uid,
			[]domain.GrantUpdate{{ChannelID: chs[0], Permission: true}}))

		devices, err := r.List(ctx, userSession(uid, "partial", adminPwd))
		require.NoError(t, err)
		require.Len(t, devices, 1)
		assert.Equal(t, "cam-a", devices[0].Name)
		assert.Equal(t, "默认区域", devices[0].AreaName)
		require.Len(t, devices[0].Channels, 1, "未授权通道不可见")
		assert.Equal(t, 1, devices[0].Channels[0].Serial)
	})
}

func TestDeviceUpdate(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	id := mustAddDevice(t, db, "upd", 3)
	chs := channelIDs(t, db, id)

	snapshot := func() *domain.DeviceInfo {
		info := &domain.DeviceInfo{
			ID: id, AreaID: domain.RootAreaID, EseeID: "esee-upd", IP: "192.168.1.10",
			Name: "upd", Port: 8000, LoginName: "admin",
		}
		rows, err := db.Query(
			`SELECT rowid, name, is_panorama, type FROM t_channel WHERE parent_id = ? ORDER BY serial`, id)
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var ch domain.DeviceInfoChannel
			require.NoError(t, rows.Scan(&ch.ID, &ch.Name, &ch.IsPanorama, &ch.ChannelType))
			info.Chs = append(info.Chs, ch)
		}
		return info
	}

	t.Run("改名与改通道字段", func(t *testing.T) {
		oldInfo := snapshot()
		newInfo := *oldInfo
		newInfo.Name = "renamed"
		newInfo.Chs = append([]domain.DeviceInfoChannel(nil), oldInfo.Chs...)
		newInfo.Chs[1].Name = "大门"
		newInfo.Chs[1].IsPanorama = 1

		require.NoError(t, r.Update(ctx, oldInfo, &newInfo))

		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_device WHERE rowid = ? AND name = 'renamed'`, id))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE rowid = ? AND name = '大门' AND is_panorama = 1`, chs[1]))
	})

	t.Run("减少通道数按序号截断并级联预置位", func(t *testing.T) {
		_, err := r.SetPresetPos(ctx, &domain.PresetArgs{
			DeviceID: id, Serial: 3, Name: "p3", Index: 1,
		})
		require.NoError(t, err)

		oldInfo := snapshot()
		newInfo := *oldInfo
		newInfo.Chs = oldInfo.Chs[:1]

		require.NoError(t, r.Update(ctx, oldInfo, &newInfo))

		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE parent_id = ?`, id))
		assert.Zero(t, countRows(t, db,
			`SELECT COUNT(*) FROM t_preset_pos WHERE preset_channel_id = ?`, chs[2]))
	})

	t.Run("增加通道数追加新序号", func(t *testing.T) {
		oldInfo := snapshot()
		newInfo := *oldInfo
		newInfo.Chs = append(append([]domain.DeviceInfoChannel(nil), oldInfo.Chs...),
			domain.DeviceInfoChannel{Name: "补充"}, domain.DeviceInfoChannel{Name: "再补"})

		require.NoError(t, r.Update(ctx, oldInfo, &newInfo))

		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE parent_id = ? AND serial = 2 AND name = '补充'`, id))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE parent_id = ? AND serial = 3 AND name = '再补'`, id))
	})
}

func TestDeviceListSkipsChannellessDevice(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	keep := mustAddDevice(t, db, "with-ch", 1)
	bare := mustAddDevice(t, db, "no-ch", 1)

	// 把第二台设备的通道裁剪到零
	oldInfo := &domain.DeviceInfo{
		ID: bare, AreaID: domain.RootAreaID, EseeID: "esee-no-ch", IP: "192.168.1.10",
		Name: "no-ch", Port: 8000, LoginName: "admin",
		Chs: []domain.DeviceInfoChannel{{}},
	}
	newInfo := *oldInfo
	newInfo.Chs = nil
	require.NoError(t, r.Update(ctx, oldInfo, &newInfo))
	require.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_channel WHERE parent_id = ?`, bare))

	devices, err := r.List(ctx, adminSession())
	require.NoError(t, err)
	require.Len(t, devices, 1, "无通道的设备不出现在列表中")
	assert.Equal(t, keep, devices[0].ID)
}

func TestDeviceDelete(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	id := mustAddDevice(t, db, "gone", 2)
	_, err := r.SetPresetPos(ctx, &domain.PresetArgs{DeviceID: id, Serial: 1, Name: "p", Index: 1})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, id))

	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_channel WHERE parent_id = ?`, id))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_preset_pos`))
}

func TestChannelPositions(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	id := mustAddDevice(t, db, "posi", 2)
	chs := channelIDs(t, db, id)

	t.Run("空入参直接返回", func(t *testing.T) {
		require.NoError(t, r.SetChannelPositions(ctx, nil))
		require.NoError(t, r.ClearChannelPositions(ctx, nil))
	})

	t.Run("写入与清空", func(t *testing.T) {
		require.NoError(t, r.SetChannelPositions(ctx, []domain.ChannelPosition{
			{ChannelID: chs[0], X: 15, Y: 30},
			{ChannelID: chs[1], X: 7, Y: 9},
		}))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE rowid = ? AND posi = 'x:15;y:30'`, chs[0]))

		require.NoError(t, r.ClearChannelPositions(ctx, []int64{chs[0]}))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE rowid = ? AND posi = ''`, chs[0]))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_channel WHERE rowid = ? AND posi = 'x:7;y:9'`, chs[1]))
	})
}

func TestModifyChannelStatus(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	id := mustAddDevice(t, db, "status", 1)
	chID := channelIDs(t, db, id)[0]

	require.NoError(t, r.ModifyChannelStatus(ctx, chID, "is_cruise", 1))
	assert.Equal(t, 1, countRows(t, db,
		`SELECT COUNT(*) FROM t_channel WHERE rowid = ? AND is_cruise = 1`, chID))

	err := r.ModifyChannelStatus(ctx, chID, "posi; DROP TABLE t_channel", 1)
	require.Error(t, err, "白名单外的列名必须被拒绝")
}

func TestPresetPos(t *testing.T) {
	db := newTestDB(t)
	r := NewDeviceRepo(db)
	ctx := context.Background()

	id := mustAddDevice(t, db, "preset", 1)

	t.Run("通道不存在", func(t *testing.T) {
		_, err := r.SetPresetPos(ctx, &domain.PresetArgs{DeviceID: id, Serial: 99, Name: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("新增与删除", func(t *testing.T) {
		pid, err := r.SetPresetPos(ctx, &domain.PresetArgs{
			DeviceID: id, Serial: 1, Name: "北门", Index: 2,
			X1: 0.1, Y1: 0.2, Z1: 0.3, X2: 0.4, Y2: 0.5, Z2: 0.6, X3: 0.7, Y3: 0.8, Z3: 0.9,
		})
		require.NoError(t, err)
		require.Positive(t, pid)

		require.NoError(t, r.DeletePresetPos(ctx, pid))
		assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_preset_pos WHERE rowid = ?`, pid))
	})
}
