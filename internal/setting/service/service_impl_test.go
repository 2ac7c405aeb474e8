package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	auditrepository "github.com/smallbiznis/tabung/internal/audit/repository"
	auditservice "github.com/smallbiznis/tabung/internal/audit/service"
	"github.com/smallbiznis/tabung/internal/setting/cache"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"github.com/smallbiznis/tabung/internal/setting/repository"
	"github.com/smallbiznis/tabung/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   settingdomain.Service
	conn  *gorm.DB
	cache *cache.Cache
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&settingdomain.SettingRecord{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	recorder := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	c := cache.New()
	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Cache: c,
		Audit: recorder,
	})
	return fixture{svc: svc, conn: conn, cache: c}
}

func (f fixture) auditCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&auditdomain.AuditLog{}).Count(&count).Error)
	return count
}

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }

func TestCreateRecordsAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
		ActorID:    strPtr("admin-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Version)
	assert.True(t, resp.IsActive)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.conn.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionCreate, logs[0].Action)
	assert.Equal(t, resp.ID, logs[0].EntityID)
	assert.Empty(t, logs[0].Before)
	assert.Equal(t, "100.00", logs[0].After["value"])
}

func TestCreateRejectsDuplicateIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := settingdomain.CreateRequest{
		SettingKey: "tax.rate",
		Value:      "7.5",
		DataType:   settingdomain.DataTypeNumber,
	}
	_, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, settingdomain.ErrDuplicateScope)

	// Same key at a different scope is a distinct identity.
	req.Scope = settingdomain.ScopeInput{CustomerTier: strPtr("VIP")}
	_, err = f.svc.Create(ctx, req)
	assert.NoError(t, err)
}

func TestCreateInactiveStoredInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
		IsActive:   boolPtr(false),
	})
	require.NoError(t, err)
	assert.False(t, resp.IsActive)

	// The stored row must agree with the response and the audit snapshot.
	got, err := f.svc.Get(ctx, resp.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	var row settingdomain.SettingRecord
	require.NoError(t, f.conn.First(&row, "setting_key = ?", "pricing.lease.daily_rate").Error)
	assert.False(t, row.IsActive)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.conn.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, false, logs[0].After["is_active"])
}

func TestCreateRejectsInvalidValue(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "not-a-number",
		DataType:   settingdomain.DataTypeNumber,
	})
	assert.ErrorIs(t, err, settingdomain.ErrInvalidValue)
	assert.Equal(t, int64(0), f.auditCount(t))
}

func TestUpdateBumpsVersionAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID:      created.ID,
		Value:   strPtr("120.00"),
		Version: 1,
		ActorID: strPtr("admin-2"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "120.00", updated.Value)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.conn.Where("action = ?", auditdomain.ActionUpdate).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "100.00", logs[0].Before["value"])
	assert.Equal(t, "120.00", logs[0].After["value"])
}

func TestUpdateStaleVersionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	// Two admins read version 1; the second write must lose.
	_, err = f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID: created.ID, Value: strPtr("110.00"), Version: 1,
	})
	require.NoError(t, err)

	before := f.auditCount(t)
	_, err = f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID: created.ID, Value: strPtr("130.00"), Version: 1,
	})
	assert.ErrorIs(t, err, settingdomain.ErrStaleVersion)
	assert.Equal(t, before, f.auditCount(t))

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "110.00", got.Value)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateConcurrentSameVersionExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	sqlDB, err := f.conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, value := range []string{"110.00", "130.00"} {
		wg.Add(1)
		go func(value string) {
			defer wg.Done()
			_, err := f.svc.Update(ctx, settingdomain.UpdateRequest{
				ID: created.ID, Value: strPtr(value), Version: 1,
			})
			errs <- err
		}(value)
	}
	wg.Wait()
	close(errs)

	var stale, won int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, settingdomain.ErrStaleVersion):
			stale++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, stale)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestUpdateClearsPriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "surcharge.condition.remote_area",
		Value:      "10.00",
		DataType:   settingdomain.DataTypeNumber,
		Priority:   intPtr(5),
	})
	require.NoError(t, err)
	require.NotNil(t, created.Priority)

	// A nil Priority keeps the override in place.
	kept, err := f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID: created.ID, Value: strPtr("12.00"), Version: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, kept.Priority)
	assert.Equal(t, 5, *kept.Priority)

	cleared, err := f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID: created.ID, ClearPriority: true, Version: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.Priority)

	var row settingdomain.SettingRecord
	require.NoError(t, f.conn.First(&row, "setting_key = ?", "surcharge.condition.remote_area").Error)
	assert.Nil(t, row.Priority)
}

func TestDeleteIsLogicalAndNeedsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "deposit.amount",
		Value:      "5000.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, settingdomain.DeleteRequest{
		ID: created.ID, Version: 1,
	})
	assert.ErrorIs(t, err, settingdomain.ErrReasonRequired)

	deleted, err := f.svc.Delete(ctx, settingdomain.DeleteRequest{
		ID: created.ID, Version: 1, Reason: "superseded by outlet overrides",
	})
	require.NoError(t, err)
	assert.False(t, deleted.IsActive)
	assert.Equal(t, int64(2), deleted.Version)

	// The row survives; only its active flag changed.
	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	var logs []auditdomain.AuditLog
	require.NoError(t, f.conn.Where("action = ?", auditdomain.ActionDelete).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Reason)
	assert.Equal(t, "superseded by outlet overrides", *logs[0].Reason)
}

func TestApplyBatchAllOrNothingRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := []settingdomain.BatchItem{
		{Create: &settingdomain.CreateRequest{
			SettingKey: "pricing.lease.daily_rate",
			Value:      "100.00",
			DataType:   settingdomain.DataTypeNumber,
		}},
		{Create: &settingdomain.CreateRequest{
			SettingKey: "tax.rate",
			Value:      "bogus",
			DataType:   settingdomain.DataTypeNumber,
		}},
	}

	_, err := f.svc.ApplyBatch(ctx, items, settingdomain.BatchAllOrNothing)
	require.Error(t, err)
	assert.ErrorIs(t, err, settingdomain.ErrInvalidValue)

	var count int64
	require.NoError(t, f.conn.Model(&settingdomain.SettingRecord{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), f.auditCount(t))
}

func TestApplyBatchBestEffortReportsPerItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := []settingdomain.BatchItem{
		{Create: &settingdomain.CreateRequest{
			SettingKey: "pricing.lease.daily_rate",
			Value:      "100.00",
			DataType:   settingdomain.DataTypeNumber,
		}},
		{Create: &settingdomain.CreateRequest{
			SettingKey: "tax.rate",
			Value:      "bogus",
			DataType:   settingdomain.DataTypeNumber,
		}},
		{Create: &settingdomain.CreateRequest{
			SettingKey: "deposit.amount",
			Value:      "5000.00",
			DataType:   settingdomain.DataTypeNumber,
		}},
	}

	result, err := f.svc.ApplyBatch(ctx, items, settingdomain.BatchBestEffort)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)

	var count int64
	require.NoError(t, f.conn.Model(&settingdomain.SettingRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestImportCreatesAndUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "pricing.lease.daily_rate",
		Value:      "100.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	rows := []settingdomain.ExportRow{
		{
			SettingKey: "pricing.lease.daily_rate",
			Value:      "125.00",
			DataType:   "number",
			IsActive:   true,
			Version:    created.Version,
		},
		{
			SettingKey:   "discount.tier_percent",
			Value:        "15",
			DataType:     "number",
			CustomerTier: "PREMIUM",
			IsActive:     true,
			Version:      1,
		},
	}

	result, err := f.svc.Import(ctx, rows, settingdomain.BatchBestEffort, strPtr("importer"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Empty(t, result.Errors)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "125.00", got.Value)
	assert.Equal(t, int64(2), got.Version)

	listed, err := f.svc.List(ctx, settingdomain.ListRequest{SettingKey: "discount.tier_percent"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Scope.CustomerTier)
	assert.Equal(t, "PREMIUM", *listed[0].Scope.CustomerTier)
}

func TestImportStaleRowReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "tax.rate",
		Value:      "7.5",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, settingdomain.UpdateRequest{
		ID: created.ID, Value: strPtr("10"), Version: 1,
	})
	require.NoError(t, err)

	rows := []settingdomain.ExportRow{{
		SettingKey: "tax.rate",
		Value:      "11",
		DataType:   "number",
		IsActive:   true,
		Version:    1,
	}}

	result, err := f.svc.Import(ctx, rows, settingdomain.BatchBestEffort, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error, settingdomain.ErrStaleVersion.Error())
}

func TestExportRoundTripShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, settingdomain.CreateRequest{
		SettingKey: "surcharge.condition.remote_area",
		Scope:      settingdomain.ScopeInput{OperationType: strPtr("LEASE")},
		Value:      "25.00",
		DataType:   settingdomain.DataTypeNumber,
	})
	require.NoError(t, err)

	rows, err := f.svc.Export(ctx, settingdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "surcharge.condition.remote_area", rows[0].SettingKey)
	assert.Equal(t, "LEASE", rows[0].OperationType)
	assert.Equal(t, int64(1), rows[0].Version)
}
