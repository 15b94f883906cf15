// file: internal/repo/registry_test.go
package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryStats(t *testing.T) {
	db := newTestDB(t)
	perm := mustPermRepo(t, db)
	reg := NewRegistry(db, adminSession(), perm)

	mustCreateUser(t, db, "stat-user")
	mustAddDevice(t, db, "stat-dev", 1)

	counts, err := reg.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Areas)
	assert.Equal(t, int64(1), counts.Devices)
	assert.Equal(t, int64(2), counts.Users)
}
