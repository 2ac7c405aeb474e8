package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	"github.com/smallbiznis/tabung/internal/audit/repository"
	"github.com/smallbiznis/tabung/pkg/db"
	"github.com/smallbiznis/tabung/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, conn
}

func strPtr(v string) *string { return &v }

func TestRecordValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	err := svc.Record(ctx, conn, auditdomain.Entry{
		EntityType: auditdomain.EntityTypeSetting,
		EntityID:   "1",
		Action:     "rename",
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(ctx, conn, auditdomain.Entry{
		Action: auditdomain.ActionCreate,
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidEntity)

	// Deletes must carry a reason.
	err = svc.Record(ctx, conn, auditdomain.Entry{
		EntityType: auditdomain.EntityTypeSetting,
		EntityID:   "1",
		Action:     auditdomain.ActionDelete,
	})
	assert.ErrorIs(t, err, auditdomain.ErrReasonRequired)
}

func TestRecordAndList(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	entries := []auditdomain.Entry{
		{
			EntityType: auditdomain.EntityTypeSetting,
			EntityID:   "10",
			Action:     auditdomain.ActionCreate,
			ActorID:    strPtr("admin-1"),
			After:      map[string]any{"value": "100.00"},
		},
		{
			EntityType: auditdomain.EntityTypeSetting,
			EntityID:   "10",
			Action:     auditdomain.ActionUpdate,
			ActorID:    strPtr("admin-2"),
			Before:     map[string]any{"value": "100.00"},
			After:      map[string]any{"value": "120.00"},
		},
		{
			EntityType: auditdomain.EntityTypeSetting,
			EntityID:   "11",
			Action:     auditdomain.ActionDelete,
			ActorID:    strPtr("admin-1"),
			Reason:     strPtr("obsolete"),
		},
	}
	for _, entry := range entries {
		require.NoError(t, svc.Record(ctx, conn, entry))
	}

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 3)
	for i := 1; i < len(resp.AuditLogs); i++ {
		assert.False(t, resp.AuditLogs[i-1].CreatedAt.Before(resp.AuditLogs[i].CreatedAt))
	}

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{EntityID: "10"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{ActorID: "admin-1"})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Action: auditdomain.ActionDelete})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	require.NotNil(t, resp.AuditLogs[0].Reason)
	assert.Equal(t, "obsolete", *resp.AuditLogs[0].Reason)
}

func TestListPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Record(ctx, conn, auditdomain.Entry{
			EntityType: auditdomain.EntityTypeSetting,
			EntityID:   "10",
			Action:     auditdomain.ActionUpdate,
		}))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
	})
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 2)

	seen := map[int64]bool{}
	for _, log := range append(first.AuditLogs, second.AuditLogs...) {
		assert.False(t, seen[int64(log.ID)])
		seen[int64(log.ID)] = true
	}

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "not-a-cursor"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
