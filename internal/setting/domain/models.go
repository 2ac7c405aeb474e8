package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tabung/pkg/money"
)

// DataType governs how a setting's raw value is parsed.
type DataType string

const (
	DataTypeNumber  DataType = "number"
	DataTypeString  DataType = "string"
	DataTypeBoolean DataType = "boolean"
	DataTypeJSON    DataType = "json"
	DataTypeArray   DataType = "array"
)

// Customer tiers recognized by pricing overrides.
const (
	TierRegular  = "REGULAR"
	TierBusiness = "BUSINESS"
	TierPremium  = "PREMIUM"
	TierVIP      = "VIP"
)

// Operation types a setting can be scoped to.
const (
	OpLease        = "LEASE"
	OpRefill       = "REFILL"
	OpSwap         = "SWAP"
	OpRegistration = "REGISTRATION"
	OpPenalty      = "PENALTY"
	OpDeposit      = "DEPOSIT"
)

// Scope is the tuple of discriminators narrowing a setting's applicability.
// A nil field applies to all values of that discriminator.
type Scope struct {
	OutletID      *snowflake.ID `gorm:"column:outlet_id;index" json:"outlet_id,string,omitempty"`
	CustomerTier  *string       `gorm:"column:customer_tier;type:text" json:"customer_tier,omitempty"`
	CylinderType  *string       `gorm:"column:cylinder_type;type:text" json:"cylinder_type,omitempty"`
	OperationType *string       `gorm:"column:operation_type;type:text" json:"operation_type,omitempty"`
}

// Specificity is the count of non-nil discriminators, 0 (global) through 4.
func (s Scope) Specificity() int {
	count := 0
	if s.OutletID != nil {
		count++
	}
	if s.CustomerTier != nil {
		count++
	}
	if s.CylinderType != nil {
		count++
	}
	if s.OperationType != nil {
		count++
	}
	return count
}

// Key renders the canonical identity string for the scope tuple, used to
// enforce one live record per (settingKey, scope) identity.
func (s Scope) Key() string {
	parts := make([]string, 0, 4)
	if s.OutletID != nil {
		parts = append(parts, "outlet="+s.OutletID.String())
	} else {
		parts = append(parts, "outlet=*")
	}
	parts = append(parts, "tier="+orStar(s.CustomerTier))
	parts = append(parts, "cyl="+orStar(s.CylinderType))
	parts = append(parts, "op="+orStar(s.OperationType))
	return strings.Join(parts, "|")
}

func orStar(value *string) string {
	if value == nil {
		return "*"
	}
	return *value
}

// ResolveScope is the request-time scope. Empty fields mean the caller did not
// supply that discriminator; records scoped on it will not match.
type ResolveScope struct {
	OutletID      *snowflake.ID
	CustomerTier  string
	CylinderType  string
	OperationType string
}

// Matches reports whether the record scope is subset-compatible with the
// request: every non-nil record field must equal the request's value.
func (s Scope) Matches(req ResolveScope) bool {
	if s.OutletID != nil {
		if req.OutletID == nil || *s.OutletID != *req.OutletID {
			return false
		}
	}
	if s.CustomerTier != nil && *s.CustomerTier != req.CustomerTier {
		return false
	}
	if s.CylinderType != nil && *s.CylinderType != req.CylinderType {
		return false
	}
	if s.OperationType != nil && *s.OperationType != req.OperationType {
		return false
	}
	return true
}

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)+$`)

// SettingRecord is one configuration value at one scope. Updates mutate the
// row in place and bump Version; every transition lands in the audit log.
// Deletion is logical only.
type SettingRecord struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id,string"`
	SettingKey string       `gorm:"column:setting_key;type:text;not null;uniqueIndex:idx_setting_identity,priority:1;index" json:"setting_key"`
	ScopeKey   string       `gorm:"column:scope_key;type:text;not null;uniqueIndex:idx_setting_identity,priority:2" json:"-"`

	Scope Scope `gorm:"embedded" json:"scope"`

	Value    string   `gorm:"type:text;not null" json:"value"`
	DataType DataType `gorm:"column:data_type;type:text;not null" json:"data_type"`

	// No gorm default tag here. With one, gorm drops the column from the
	// INSERT when the value is false and the row comes back active.
	IsActive bool  `gorm:"column:is_active;not null" json:"is_active"`
	Version  int64 `gorm:"not null;default:1" json:"version"`
	Priority *int  `gorm:"column:priority" json:"priority,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SettingRecord) TableName() string { return "setting_records" }

// Validate checks the key shape and that the raw value parses for its
// declared data type. Values are never silently coerced.
func (r *SettingRecord) Validate() error {
	if !keyPattern.MatchString(r.SettingKey) {
		return ErrInvalidKey
	}
	switch r.DataType {
	case DataTypeNumber:
		if _, err := money.ParseAmount(r.Value); err != nil {
			return fmt.Errorf("%w: %q is not a decimal number", ErrInvalidValue, r.Value)
		}
	case DataTypeString:
		// any text is valid
	case DataTypeBoolean:
		if _, err := strconv.ParseBool(strings.TrimSpace(r.Value)); err != nil {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, r.Value)
		}
	case DataTypeJSON:
		if !json.Valid([]byte(r.Value)) {
			return fmt.Errorf("%w: invalid json payload", ErrInvalidValue)
		}
	case DataTypeArray:
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(r.Value), &arr); err != nil {
			return fmt.Errorf("%w: %q is not a json array", ErrInvalidValue, r.Value)
		}
	default:
		return ErrInvalidDataType
	}
	return nil
}

// AmountValue parses a number payload as int64 minor units.
func (r *SettingRecord) AmountValue() (int64, error) {
	if r.DataType != DataTypeNumber {
		return 0, fmt.Errorf("%w: %s is %s, want number", ErrInvalidValue, r.SettingKey, r.DataType)
	}
	units, err := money.ParseAmount(r.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, r.SettingKey, err)
	}
	return units, nil
}

// PercentValue parses a number payload as whole-number percent basis points.
func (r *SettingRecord) PercentValue() (int64, error) {
	if r.DataType != DataTypeNumber {
		return 0, fmt.Errorf("%w: %s is %s, want number", ErrInvalidValue, r.SettingKey, r.DataType)
	}
	bp, err := money.ParsePercent(r.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, r.SettingKey, err)
	}
	if bp < 0 {
		// A negative percent would flip the sign of its pricing stage.
		return 0, fmt.Errorf("%w: %s: percent must not be negative", ErrInvalidValue, r.SettingKey)
	}
	return bp, nil
}

// BoolValue parses a boolean payload.
func (r *SettingRecord) BoolValue() (bool, error) {
	if r.DataType != DataTypeBoolean {
		return false, fmt.Errorf("%w: %s is %s, want boolean", ErrInvalidValue, r.SettingKey, r.DataType)
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(r.Value))
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidValue, r.SettingKey, err)
	}
	return parsed, nil
}

// StringValue returns a string payload.
func (r *SettingRecord) StringValue() (string, error) {
	if r.DataType != DataTypeString {
		return "", fmt.Errorf("%w: %s is %s, want string", ErrInvalidValue, r.SettingKey, r.DataType)
	}
	return r.Value, nil
}

// JSONValue unmarshals a json or array payload into dest.
func (r *SettingRecord) JSONValue(dest any) error {
	if r.DataType != DataTypeJSON && r.DataType != DataTypeArray {
		return fmt.Errorf("%w: %s is %s, want json", ErrInvalidValue, r.SettingKey, r.DataType)
	}
	if err := json.Unmarshal([]byte(r.Value), dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, r.SettingKey, err)
	}
	return nil
}

// Snapshot renders the audit-facing view of the record.
func (r *SettingRecord) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	snap := map[string]any{
		"setting_key": r.SettingKey,
		"scope_key":   r.ScopeKey,
		"value":       r.Value,
		"data_type":   string(r.DataType),
		"is_active":   r.IsActive,
		"version":     r.Version,
	}
	if r.Priority != nil {
		snap["priority"] = *r.Priority
	}
	return snap
}
