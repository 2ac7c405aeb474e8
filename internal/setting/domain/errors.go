package domain

import "errors"

var (
	ErrSettingNotFound = errors.New("setting_not_found")
	ErrStaleVersion    = errors.New("stale_version")
	ErrInvalidKey      = errors.New("invalid_setting_key")
	ErrInvalidValue    = errors.New("invalid_setting_value")
	ErrInvalidDataType = errors.New("invalid_data_type")
	ErrInvalidScope    = errors.New("invalid_scope")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidVersion  = errors.New("invalid_version")
	ErrReasonRequired  = errors.New("reason_required")
	ErrInvalidMode     = errors.New("invalid_batch_mode")
	ErrDuplicateScope  = errors.New("duplicate_scope")
)
