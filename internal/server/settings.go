package server

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
)

type listSettingsQuery struct {
	SettingKey string `form:"setting_key"`
	OutletID   string `form:"outlet_id"`
	IsActive   string `form:"is_active"`
	SortBy     string `form:"sort_by"`
	OrderBy    string `form:"order_by"`
}

func (q listSettingsQuery) toRequest() (settingdomain.ListRequest, error) {
	isActive, err := parseOptionalBool(q.IsActive)
	if err != nil {
		return settingdomain.ListRequest{}, newValidationError("is_active", "invalid_is_active", "invalid is_active")
	}
	return settingdomain.ListRequest{
		SettingKey: strings.TrimSpace(q.SettingKey),
		OutletID:   optionalString(q.OutletID),
		IsActive:   isActive,
		SortBy:     strings.TrimSpace(q.SortBy),
		OrderBy:    strings.TrimSpace(q.OrderBy),
	}, nil
}

func (s *Server) ListSettings(c *gin.Context) {
	var query listSettingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := query.toRequest()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	settings, err := s.settingSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

func (s *Server) GetSetting(c *gin.Context) {
	resp, err := s.settingSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateSetting(c *gin.Context) {
	var req settingdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ActorID = actorIDFromRequest(c)

	resp, err := s.settingSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) UpdateSetting(c *gin.Context) {
	var req settingdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")
	req.ActorID = actorIDFromRequest(c)

	resp, err := s.settingSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteSetting(c *gin.Context) {
	version, err := strconv.ParseInt(strings.TrimSpace(c.Query("version")), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("version", "invalid_version", "invalid version"))
		return
	}

	req := settingdomain.DeleteRequest{
		ID:      c.Param("id"),
		Version: version,
		Reason:  strings.TrimSpace(c.Query("reason")),
		ActorID: actorIDFromRequest(c),
	}

	resp, err := s.settingSvc.Delete(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type resolveSettingQuery struct {
	SettingKey    string `form:"setting_key"`
	OutletID      string `form:"outlet_id"`
	CustomerTier  string `form:"customer_tier"`
	CylinderType  string `form:"cylinder_type"`
	OperationType string `form:"operation_type"`
}

func (s *Server) ResolveSetting(c *gin.Context) {
	var query resolveSettingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(query.SettingKey) == "" {
		AbortWithError(c, newValidationError("setting_key", "invalid_key", "setting_key is required"))
		return
	}

	scope := settingdomain.ResolveScope{
		CustomerTier:  strings.ToUpper(strings.TrimSpace(query.CustomerTier)),
		CylinderType:  strings.ToUpper(strings.TrimSpace(query.CylinderType)),
		OperationType: strings.ToUpper(strings.TrimSpace(query.OperationType)),
	}
	if outletID := optionalString(query.OutletID); outletID != nil {
		parsed, err := parseOptionalSnowflakeID(*outletID)
		if err != nil {
			AbortWithError(c, newValidationError("outlet_id", "invalid_scope", "invalid outlet_id"))
			return
		}
		scope.OutletID = parsed
	}

	record, err := s.resolver.Resolve(c.Request.Context(), strings.TrimSpace(query.SettingKey), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type applyBatchRequest struct {
	Mode  settingdomain.BatchMode   `json:"mode"`
	Items []settingdomain.BatchItem `json:"items"`
}

func (s *Server) ApplySettingsBatch(c *gin.Context) {
	var req applyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Items) == 0 {
		AbortWithError(c, newValidationError("items", "invalid_request", "items must not be empty"))
		return
	}
	if limit := s.engineLimits().MaxBatchItems; len(req.Items) > limit {
		AbortWithError(c, newValidationError("items", "too_many_items", "batch exceeds "+strconv.Itoa(limit)+" items"))
		return
	}

	actorID := actorIDFromRequest(c)
	for i := range req.Items {
		if req.Items[i].Create != nil {
			req.Items[i].Create.ActorID = actorID
		}
		if req.Items[i].Update != nil {
			req.Items[i].Update.ActorID = actorID
		}
		if req.Items[i].Delete != nil {
			req.Items[i].Delete.ActorID = actorID
		}
	}

	result, err := s.settingSvc.ApplyBatch(c.Request.Context(), req.Items, req.Mode)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ExportSettings(c *gin.Context) {
	var query listSettingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req, err := query.toRequest()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.settingSvc.Export(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(c.Query("format")), "csv") {
		writeSettingsCSV(c, rows)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

type importSettingsRequest struct {
	Mode settingdomain.BatchMode   `json:"mode"`
	Rows []settingdomain.ExportRow `json:"rows"`
}

func (s *Server) ImportSettings(c *gin.Context) {
	var req importSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Rows) == 0 {
		AbortWithError(c, newValidationError("rows", "invalid_request", "rows must not be empty"))
		return
	}
	if limit := s.engineLimits().MaxImportRows; len(req.Rows) > limit {
		AbortWithError(c, newValidationError("rows", "too_many_rows", "import exceeds "+strconv.Itoa(limit)+" rows"))
		return
	}

	result, err := s.settingSvc.Import(c.Request.Context(), req.Rows, req.Mode, actorIDFromRequest(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeSettingsCSV(c *gin.Context, rows []settingdomain.ExportRow) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="settings.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"key", "value", "data_type", "outlet_id", "customer_tier", "cylinder_type", "operation_type", "is_active", "version"})
	for _, row := range rows {
		_ = w.Write([]string{
			row.SettingKey,
			row.Value,
			row.DataType,
			row.OutletID,
			row.CustomerTier,
			row.CylinderType,
			row.OperationType,
			strconv.FormatBool(row.IsActive),
			strconv.FormatInt(row.Version, 10),
		})
	}
	w.Flush()
}
