package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	auditrepository "github.com/smallbiznis/tabung/internal/audit/repository"
	auditservice "github.com/smallbiznis/tabung/internal/audit/service"
	"github.com/smallbiznis/tabung/internal/config"
	"github.com/smallbiznis/tabung/internal/observability"
	pricingservice "github.com/smallbiznis/tabung/internal/pricing/service"
	settingcache "github.com/smallbiznis/tabung/internal/setting/cache"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	settingrepository "github.com/smallbiznis/tabung/internal/setting/repository"
	settingresolver "github.com/smallbiznis/tabung/internal/setting/resolver"
	settingservice "github.com/smallbiznis/tabung/internal/setting/service"
	"github.com/smallbiznis/tabung/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type serverFixture struct {
	srv  *Server
	conn *gorm.DB
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&settingdomain.SettingRecord{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	cache := settingcache.New()
	repo := settingrepository.Provide()
	resolver := settingresolver.NewResolver(settingresolver.Params{
		DB:    conn,
		Log:   log,
		Repo:  repo,
		Cache: cache,
	})
	settingSvc := settingservice.NewService(settingservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  repo,
		Cache: cache,
		Audit: auditSvc,
	})
	pricingSvc := pricingservice.NewService(pricingservice.Params{
		Log:      log,
		Resolver: resolver,
	})

	engine := NewEngine(observability.Config{}, nil)
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        config.Config{},
		DB:         conn,
		GenID:      node,
		SettingSvc: settingSvc,
		Resolver:   resolver,
		PricingSvc: pricingSvc,
		AuditSvc:   auditSvc,
	})
	return &serverFixture{srv: srv, conn: conn}
}

func (f *serverFixture) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func TestCreateSettingEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "pricing.lease.daily_rate",
		"value":       "100.00",
		"data_type":   "number",
	}, map[string]string{"X-Actor-Id": "admin-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created settingdomain.Response
	decodeBody(t, rec, &created)
	assert.Equal(t, int64(1), created.Version)
	assert.True(t, created.IsActive)

	var log auditdomain.AuditLog
	require.NoError(t, f.conn.First(&log).Error)
	require.NotNil(t, log.ActorID)
	assert.Equal(t, "admin-1", *log.ActorID)
}

func TestUpdateSettingStaleVersionConflict(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "tax.rate",
		"value":       "7.5",
		"data_type":   "number",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created settingdomain.Response
	decodeBody(t, rec, &created)

	path := "/v1/settings/" + created.ID
	rec = f.request(t, http.MethodPut, path, gin.H{"value": "10", "version": 1}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPut, path, gin.H{"value": "11", "version": 1}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "stale_version", resp.Error.Type)
}

func TestDeleteSettingRequiresReason(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "deposit.amount",
		"value":       "5000.00",
		"data_type":   "number",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created settingdomain.Response
	decodeBody(t, rec, &created)

	rec = f.request(t, http.MethodDelete, "/v1/settings/"+created.ID+"?version=1", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodDelete,
		"/v1/settings/"+created.ID+"?version=1&reason=obsolete", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var deleted settingdomain.Response
	decodeBody(t, rec, &deleted)
	assert.False(t, deleted.IsActive)
}

func TestResolveSettingEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "pricing.lease.daily_rate",
		"value":       "100.00",
		"data_type":   "number",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "pricing.lease.daily_rate",
		"value":       "120.00",
		"data_type":   "number",
		"scope":       gin.H{"outlet_id": "42"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodGet,
		"/v1/settings/resolve?setting_key=pricing.lease.daily_rate&outlet_id=42", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved settingdomain.SettingRecord
	decodeBody(t, rec, &resolved)
	assert.Equal(t, "120.00", resolved.Value)

	rec = f.request(t, http.MethodGet,
		"/v1/settings/resolve?setting_key=pricing.lease.daily_rate&outlet_id=7", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resolved)
	assert.Equal(t, "100.00", resolved.Value)

	rec = f.request(t, http.MethodGet,
		"/v1/settings/resolve?setting_key=missing.key", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculatePriceEndpoint(t *testing.T) {
	f := newServerFixture(t)

	seeds := []gin.H{
		{"setting_key": "pricing.lease.daily_rate", "value": "1000.00", "data_type": "number"},
		{"setting_key": "tax.rate", "value": "7.5", "data_type": "number"},
		{"setting_key": "tax.type", "value": "exclusive", "data_type": "string"},
		{"setting_key": "discount.tier_percent", "value": "15", "data_type": "number",
			"scope": gin.H{"customer_tier": "PREMIUM"}},
	}
	for _, seed := range seeds {
		rec := f.request(t, http.MethodPost, "/v1/settings", seed, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.request(t, http.MethodPost, "/v1/pricing/calculate", gin.H{
		"operation_type": "LEASE",
		"customer_tier":  "PREMIUM",
		"quantity":       1,
		"duration_days":  1,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	decodeBody(t, rec, &result)
	assert.Equal(t, "913.75", result["total_price"])
}

func TestCalculatePriceMissingSetting(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/pricing/calculate", gin.H{
		"operation_type": "LEASE",
		"quantity":       1,
		"duration_days":  1,
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "missing_setting", resp.Error.Type)
}

func TestSettingsBatchEndpointBestEffort(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings/batch", gin.H{
		"mode": "best_effort",
		"items": []gin.H{
			{"create": gin.H{"setting_key": "tax.rate", "value": "11", "data_type": "number"}},
			{"create": gin.H{"setting_key": "tax.rate", "value": "bogus", "data_type": "number"}},
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result settingdomain.BatchResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
}

func TestListAuditLogsEndpoint(t *testing.T) {
	f := newServerFixture(t)

	for i := 0; i < 3; i++ {
		rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
			"setting_key": fmt.Sprintf("tax.bracket_%d", i),
			"value":       "5",
			"data_type":   "number",
		}, map[string]string{"X-Actor-Id": "admin-9"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := f.request(t, http.MethodGet, "/v1/audit-logs?actor_id=admin-9", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Data, 3)
	for i := 1; i < len(resp.Data); i++ {
		assert.False(t, resp.Data[i-1].CreatedAt.Before(resp.Data[i].CreatedAt))
	}
}

func TestCalculatePriceBulkRejectsOversizedRequest(t *testing.T) {
	f := newServerFixture(t)

	contexts := make([]gin.H, config.DefaultEngineLimits().MaxBulkContexts+1)
	for i := range contexts {
		contexts[i] = gin.H{"operation_type": "LEASE", "quantity": 1, "duration_days": 1}
	}

	rec := f.request(t, http.MethodPost, "/v1/pricing/calculate/bulk", gin.H{"contexts": contexts}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "too_many_contexts", resp.Error.Errors[0].Code)
}

func TestGeneratePricingQuotePDF(t *testing.T) {
	f := newServerFixture(t)

	rec := f.request(t, http.MethodPost, "/v1/settings", gin.H{
		"setting_key": "pricing.lease.daily_rate",
		"value":       "1000.00",
		"data_type":   "number",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.request(t, http.MethodPost, "/v1/pricing/quote", gin.H{
		"operation_type": "LEASE",
		"quantity":       2,
		"duration_days":  3,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}
