package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tabung/internal/audit/domain"
	obsmetrics "github.com/smallbiznis/tabung/internal/observability/metrics"
	"github.com/smallbiznis/tabung/internal/setting/cache"
	settingdomain "github.com/smallbiznis/tabung/internal/setting/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    settingdomain.Repository
	Cache   *cache.Cache
	Audit   auditdomain.Recorder
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    settingdomain.Repository
	cache   *cache.Cache
	audit   auditdomain.Recorder
	metrics *obsmetrics.Metrics
}

func NewService(p Params) settingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("setting.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		cache:   p.Cache,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req settingdomain.CreateRequest) (*settingdomain.Response, error) {
	var record *settingdomain.SettingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.createTx(ctx, tx, req)
		if err != nil {
			return err
		}
		record = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(record.SettingKey)
	s.metrics.RecordSettingWrite(ctx, auditdomain.ActionCreate)
	return toResponse(record), nil
}

func (s *Service) Update(ctx context.Context, req settingdomain.UpdateRequest) (*settingdomain.Response, error) {
	var record *settingdomain.SettingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated, err := s.updateTx(ctx, tx, req)
		if err != nil {
			return err
		}
		record = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(record.SettingKey)
	s.metrics.RecordSettingWrite(ctx, auditdomain.ActionUpdate)
	return toResponse(record), nil
}

func (s *Service) Delete(ctx context.Context, req settingdomain.DeleteRequest) (*settingdomain.Response, error) {
	var record *settingdomain.SettingRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.deleteTx(ctx, tx, req)
		if err != nil {
			return err
		}
		record = deleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(record.SettingKey)
	s.metrics.RecordSettingWrite(ctx, auditdomain.ActionDelete)
	return toResponse(record), nil
}

func (s *Service) Get(ctx context.Context, id string) (*settingdomain.Response, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	record, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, settingdomain.ErrSettingNotFound
	}
	return toResponse(record), nil
}

func (s *Service) List(ctx context.Context, req settingdomain.ListRequest) ([]settingdomain.Response, error) {
	filter := settingdomain.ListFilter{
		SettingKey: strings.TrimSpace(req.SettingKey),
		IsActive:   req.IsActive,
		SortBy:     req.SortBy,
		OrderBy:    req.OrderBy,
	}
	if req.OutletID != nil {
		outletID, err := snowflake.ParseString(strings.TrimSpace(*req.OutletID))
		if err != nil || outletID == 0 {
			return nil, settingdomain.ErrInvalidScope
		}
		filter.OutletID = &outletID
	}

	records, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]settingdomain.Response, 0, len(records))
	for i := range records {
		responses = append(responses, *toResponse(&records[i]))
	}
	return responses, nil
}

// ApplyBatch applies candidate writes in the requested mode. All-or-nothing
// shares one transaction and aborts on the first failure; best-effort runs
// each item independently and reports per-item errors.
func (s *Service) ApplyBatch(ctx context.Context, items []settingdomain.BatchItem, mode settingdomain.BatchMode) (*settingdomain.BatchResult, error) {
	switch mode {
	case settingdomain.BatchAllOrNothing:
		return s.applyAllOrNothing(ctx, items)
	case settingdomain.BatchBestEffort:
		return s.applyBestEffort(ctx, items)
	default:
		return nil, settingdomain.ErrInvalidMode
	}
}

func (s *Service) applyAllOrNothing(ctx context.Context, items []settingdomain.BatchItem) (*settingdomain.BatchResult, error) {
	touched := make(map[string]struct{})
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for index, item := range items {
			record, err := s.applyItemTx(ctx, tx, item)
			if err != nil {
				return fmt.Errorf("item %d: %w", index, err)
			}
			touched[record.SettingKey] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for key := range touched {
		s.cache.Invalidate(key)
	}
	return &settingdomain.BatchResult{Applied: len(items)}, nil
}

func (s *Service) applyBestEffort(ctx context.Context, items []settingdomain.BatchItem) (*settingdomain.BatchResult, error) {
	result := &settingdomain.BatchResult{}
	for index, item := range items {
		var record *settingdomain.SettingRecord
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			applied, err := s.applyItemTx(ctx, tx, item)
			if err != nil {
				return err
			}
			record = applied
			return nil
		})
		if err != nil {
			result.Errors = append(result.Errors, settingdomain.BatchItemError{
				Index: index,
				Error: err.Error(),
			})
			continue
		}
		s.cache.Invalidate(record.SettingKey)
		result.Applied++
	}
	return result, nil
}

func (s *Service) applyItemTx(ctx context.Context, tx *gorm.DB, item settingdomain.BatchItem) (*settingdomain.SettingRecord, error) {
	switch {
	case item.Create != nil:
		return s.createTx(ctx, tx, *item.Create)
	case item.Update != nil:
		return s.updateTx(ctx, tx, *item.Update)
	case item.Delete != nil:
		return s.deleteTx(ctx, tx, *item.Delete)
	default:
		return nil, settingdomain.ErrInvalidMode
	}
}

func (s *Service) Export(ctx context.Context, req settingdomain.ListRequest) ([]settingdomain.ExportRow, error) {
	responses, err := s.List(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := make([]settingdomain.ExportRow, 0, len(responses))
	for _, resp := range responses {
		row := settingdomain.ExportRow{
			SettingKey: resp.SettingKey,
			Value:      resp.Value,
			DataType:   string(resp.DataType),
			IsActive:   resp.IsActive,
			Version:    resp.Version,
		}
		if resp.Scope.OutletID != nil {
			row.OutletID = resp.Scope.OutletID.String()
		}
		if resp.Scope.CustomerTier != nil {
			row.CustomerTier = *resp.Scope.CustomerTier
		}
		if resp.Scope.CylinderType != nil {
			row.CylinderType = *resp.Scope.CylinderType
		}
		if resp.Scope.OperationType != nil {
			row.OperationType = *resp.Scope.OperationType
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Import treats every row as a candidate write: unknown identities are
// created, known identities are updated under the row's version, the same
// optimistic-concurrency rule as a direct API write.
func (s *Service) Import(ctx context.Context, rows []settingdomain.ExportRow, mode settingdomain.BatchMode, actorID *string) (*settingdomain.BatchResult, error) {
	items := make([]settingdomain.BatchItem, 0, len(rows))
	for _, row := range rows {
		item, err := s.importItem(ctx, row, actorID)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	result, err := s.ApplyBatch(ctx, items, mode)
	if err != nil {
		return nil, err
	}

	// Imports can touch many keys at once; drop the whole snapshot.
	s.cache.Reset()
	return result, nil
}

func (s *Service) importItem(ctx context.Context, row settingdomain.ExportRow, actorID *string) (settingdomain.BatchItem, error) {
	scopeInput := settingdomain.ScopeInput{}
	if v := strings.TrimSpace(row.OutletID); v != "" {
		scopeInput.OutletID = &v
	}
	if v := strings.TrimSpace(row.CustomerTier); v != "" {
		scopeInput.CustomerTier = &v
	}
	if v := strings.TrimSpace(row.CylinderType); v != "" {
		scopeInput.CylinderType = &v
	}
	if v := strings.TrimSpace(row.OperationType); v != "" {
		scopeInput.OperationType = &v
	}

	scope, err := parseScope(scopeInput)
	if err != nil {
		return settingdomain.BatchItem{}, err
	}

	existing, err := s.repo.FindByIdentity(ctx, s.db, strings.TrimSpace(row.SettingKey), scope.Key())
	if err != nil {
		return settingdomain.BatchItem{}, err
	}

	if existing == nil {
		isActive := row.IsActive
		return settingdomain.BatchItem{Create: &settingdomain.CreateRequest{
			SettingKey: row.SettingKey,
			Scope:      scopeInput,
			Value:      row.Value,
			DataType:   settingdomain.DataType(row.DataType),
			IsActive:   &isActive,
			ActorID:    actorID,
		}}, nil
	}

	value := row.Value
	dataType := settingdomain.DataType(row.DataType)
	isActive := row.IsActive
	return settingdomain.BatchItem{Update: &settingdomain.UpdateRequest{
		ID:       existing.ID.String(),
		Value:    &value,
		DataType: &dataType,
		IsActive: &isActive,
		Version:  row.Version,
		ActorID:  actorID,
	}}, nil
}

func (s *Service) createTx(ctx context.Context, tx *gorm.DB, req settingdomain.CreateRequest) (*settingdomain.SettingRecord, error) {
	scope, err := parseScope(req.Scope)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &settingdomain.SettingRecord{
		ID:         s.genID.Generate(),
		SettingKey: strings.TrimSpace(req.SettingKey),
		Scope:      scope,
		Value:      req.Value,
		DataType:   req.DataType,
		IsActive:   true,
		Version:    1,
		Priority:   req.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	record.ScopeKey = scope.Key()
	if req.IsActive != nil {
		record.IsActive = *req.IsActive
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByIdentity(ctx, tx, record.SettingKey, record.ScopeKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s at %s", settingdomain.ErrDuplicateScope, record.SettingKey, record.ScopeKey)
	}

	// Audit first: the entry and the row commit together or not at all.
	if err := s.audit.Record(ctx, tx, auditdomain.Entry{
		EntityType: auditdomain.EntityTypeSetting,
		EntityID:   record.ID.String(),
		Action:     auditdomain.ActionCreate,
		ActorID:    req.ActorID,
		Reason:     req.Reason,
		After:      record.Snapshot(),
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, tx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) updateTx(ctx context.Context, tx *gorm.DB, req settingdomain.UpdateRequest) (*settingdomain.SettingRecord, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.Version <= 0 {
		return nil, settingdomain.ErrInvalidVersion
	}

	existing, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, settingdomain.ErrSettingNotFound
	}
	if existing.Version != req.Version {
		s.metrics.RecordSettingConflict(ctx, existing.SettingKey)
		return nil, fmt.Errorf("%w: have %d, want %d", settingdomain.ErrStaleVersion, existing.Version, req.Version)
	}

	before := existing.Snapshot()

	updated := *existing
	if req.Value != nil {
		updated.Value = *req.Value
	}
	if req.DataType != nil {
		updated.DataType = *req.DataType
	}
	if req.ClearPriority {
		updated.Priority = nil
	} else if req.Priority != nil {
		updated.Priority = req.Priority
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	updated.Version = req.Version + 1

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, tx, auditdomain.Entry{
		EntityType: auditdomain.EntityTypeSetting,
		EntityID:   updated.ID.String(),
		Action:     auditdomain.ActionUpdate,
		ActorID:    req.ActorID,
		Reason:     req.Reason,
		Before:     before,
		After:      updated.Snapshot(),
	}); err != nil {
		return nil, err
	}

	applied, err := s.repo.UpdateVersioned(ctx, tx, &updated, req.Version)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race between the read above and the guarded write.
		s.metrics.RecordSettingConflict(ctx, updated.SettingKey)
		return nil, fmt.Errorf("%w: version %d has advanced", settingdomain.ErrStaleVersion, req.Version)
	}
	return &updated, nil
}

func (s *Service) deleteTx(ctx context.Context, tx *gorm.DB, req settingdomain.DeleteRequest) (*settingdomain.SettingRecord, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, settingdomain.ErrReasonRequired
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.Version <= 0 {
		return nil, settingdomain.ErrInvalidVersion
	}

	existing, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, settingdomain.ErrSettingNotFound
	}
	if existing.Version != req.Version {
		s.metrics.RecordSettingConflict(ctx, existing.SettingKey)
		return nil, fmt.Errorf("%w: have %d, want %d", settingdomain.ErrStaleVersion, existing.Version, req.Version)
	}

	before := existing.Snapshot()

	updated := *existing
	updated.IsActive = false
	updated.Version = req.Version + 1

	reason := strings.TrimSpace(req.Reason)
	if err := s.audit.Record(ctx, tx, auditdomain.Entry{
		EntityType: auditdomain.EntityTypeSetting,
		EntityID:   updated.ID.String(),
		Action:     auditdomain.ActionDelete,
		ActorID:    req.ActorID,
		Reason:     &reason,
		Before:     before,
		After:      updated.Snapshot(),
	}); err != nil {
		return nil, err
	}

	applied, err := s.repo.UpdateVersioned(ctx, tx, &updated, req.Version)
	if err != nil {
		return nil, err
	}
	if !applied {
		s.metrics.RecordSettingConflict(ctx, updated.SettingKey)
		return nil, fmt.Errorf("%w: version %d has advanced", settingdomain.ErrStaleVersion, req.Version)
	}
	return &updated, nil
}

func parseScope(input settingdomain.ScopeInput) (settingdomain.Scope, error) {
	scope := settingdomain.Scope{}

	if input.OutletID != nil {
		trimmed := strings.TrimSpace(*input.OutletID)
		if trimmed != "" {
			outletID, err := snowflake.ParseString(trimmed)
			if err != nil || outletID == 0 {
				return scope, settingdomain.ErrInvalidScope
			}
			scope.OutletID = &outletID
		}
	}
	if v := normalizeDiscriminator(input.CustomerTier); v != nil {
		switch *v {
		case settingdomain.TierRegular, settingdomain.TierBusiness, settingdomain.TierPremium, settingdomain.TierVIP:
			scope.CustomerTier = v
		default:
			return scope, settingdomain.ErrInvalidScope
		}
	}
	if v := normalizeDiscriminator(input.CylinderType); v != nil {
		scope.CylinderType = v
	}
	if v := normalizeDiscriminator(input.OperationType); v != nil {
		switch *v {
		case settingdomain.OpLease, settingdomain.OpRefill, settingdomain.OpSwap,
			settingdomain.OpRegistration, settingdomain.OpPenalty, settingdomain.OpDeposit:
			scope.OperationType = v
		default:
			return scope, settingdomain.ErrInvalidScope
		}
	}

	return scope, nil
}

func normalizeDiscriminator(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.ToUpper(strings.TrimSpace(*value))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parseID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		return 0, settingdomain.ErrInvalidID
	}
	return parsed, nil
}

func toResponse(record *settingdomain.SettingRecord) *settingdomain.Response {
	return &settingdomain.Response{
		ID:         record.ID.String(),
		SettingKey: record.SettingKey,
		Scope:      record.Scope,
		Value:      record.Value,
		DataType:   record.DataType,
		IsActive:   record.IsActive,
		Version:    record.Version,
		Priority:   record.Priority,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}
