package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserDevice identifies one replica of a user's data. A device is a valid
// sync principal only while it exists, belongs to the user, is active, and
// is not soft-deleted.
type UserDevice struct {
	Meta
	DeviceToken string
	Platform    string
	DisplayName string
	IsActive    bool
}

// NewUserDevice registers a device for userID.
func NewUserDevice(userID uuid.UUID, token, platform, displayName string, now time.Time) (*UserDevice, error) {
	var violations []string
	if token == "" {
		violations = append(violations, "device token must not be empty")
	}
	if platform == "" {
		violations = append(violations, "platform must not be empty")
	}
	if len(violations) > 0 {
		return nil, validationErr(violations...)
	}
	return &UserDevice{
		Meta:        newMeta(userID, now),
		DeviceToken: token,
		Platform:    platform,
		DisplayName: displayName,
		IsActive:    true,
	}, nil
}

// Deactivate retires the device as a sync principal. The row stays so token
// lookups still resolve.
func (d *UserDevice) Deactivate(now time.Time) error {
	if d.IsDeleted {
		return ErrDeleted
	}
	d.IsActive = false
	d.touch(now)
	return nil
}

// CanSync reports whether the device is usable as a sync principal.
func (d *UserDevice) CanSync() bool {
	return d.IsActive && !d.IsDeleted
}

// RehydrateUserDevice rebuilds a device from persisted state.
func RehydrateUserDevice(meta Meta, token, platform, displayName string, isActive bool) *UserDevice {
	return &UserDevice{Meta: meta, DeviceToken: token, Platform: platform, DisplayName: displayName, IsActive: isActive}
}
