// file: internal/repo/policy_test.go
package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CMSCore/internal/core/domain"
)

func TestPolicySave(t *testing.T) {
	db := newTestDB(t)
	r := NewPolicyRepo(db)
	ctx := context.Background()

	devID := mustAddDevice(t, db, "policy-dev", 4)
	chs := channelIDs(t, db, devID)

	t.Run("新增策略与通道绑定", func(t *testing.T) {
		id, err := r.Save(ctx, &domain.PolicyArgs{
			Name: "早班轮巡", Interval: 30, Screen: 4,
			Channels: []domain.PolicyScreenChannel{
				{Index: 0, ChannelID: chs[0]},
				{Index: 1, ChannelID: chs[1]},
			},
		})
		require.NoError(t, err)
		require.Positive(t, id)

		assert.Equal(t, 2, countRows(t, db,
			`SELECT COUNT(*) FROM t_policy_and_channel WHERE parent_id = ?`, id))
		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_policy_and_channel WHERE parent_id = ? AND channel_id = ? AND screen_number = 1`,
			id, chs[1]))
	})

	t.Run("更新策略整体替换绑定不产生重复", func(t *testing.T) {
		id, err := r.Save(ctx, &domain.PolicyArgs{
			Name: "夜班", Interval: 60, Screen: 1,
			Channels: []domain.PolicyScreenChannel{{Index: 0, ChannelID: chs[0]}},
		})
		require.NoError(t, err)

		updatedID, err := r.Save(ctx, &domain.PolicyArgs{
			PolicyID: id, Name: "夜班改", Interval: 90, Screen: 4,
			Channels: []domain.PolicyScreenChannel{
				{Index: 0, ChannelID: chs[2]},
				{Index: 1, ChannelID: chs[3]},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, id, updatedID)

		assert.Equal(t, 1, countRows(t, db,
			`SELECT COUNT(*) FROM t_policy WHERE rowid = ? AND name = '夜班改' AND interval = 90`, id))
		assert.Equal(t, 2, countRows(t, db,
			`SELECT COUNT(*) FROM t_policy_and_channel WHERE parent_id = ?`, id))
		assert.Zero(t, countRows(t, db,
			`SELECT COUNT(*) FROM t_policy_and_channel WHERE parent_id = ? AND channel_id = ?`, id, chs[0]),
			"旧绑定应被替换")
	})

	t.Run("空入参", func(t *testing.T) {
		_, err := r.Save(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestPolicyList(t *testing.T) {
	db := newTestDB(t)
	r := NewPolicyRepo(db)
	ctx := context.Background()

	devID := mustAddDevice(t, db, "policy-list", 2)
	chs := channelIDs(t, db, devID)

	p1, err := r.Save(ctx, &domain.PolicyArgs{
		Name: "A", Interval: 10, Screen: 1,
		Channels: []domain.PolicyScreenChannel{
			{Index: 1, ChannelID: chs[1]},
			{Index: 0, ChannelID: chs[0]},
		},
	})
	require.NoError(t, err)
	p2, err := r.Save(ctx, &domain.PolicyArgs{Name: "B", Interval: 20, Screen: 1})
	require.NoError(t, err)

	policies, links, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, p1, policies[0].ID)
	assert.Equal(t, p2, policies[1].ID)

	require.Len(t, links, 2)
	// 绑定按窗口序号排序
	assert.Equal(t, 0, links[0].ScreenNumber)
	assert.Equal(t, chs[0], links[0].ChannelID)
	assert.Equal(t, 1, links[1].ScreenNumber)
}

func TestPolicyDelete(t *testing.T) {
	db := newTestDB(t)
	r := NewPolicyRepo(db)
	ctx := context.Background()

	id, err := r.Save(ctx, &domain.PolicyArgs{Name: "短命", Interval: 5, Screen: 1})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, id))
	assert.Zero(t, countRows(t, db, `SELECT COUNT(*) FROM t_policy WHERE rowid = ?`, id))

	// 删除后 List 不再返回该策略的任何绑定
	_, links, err := r.List(ctx)
	require.NoError(t, err)
	for _, l := range links {
		assert.NotEqual(t, id, l.PolicyID)
	}
}
