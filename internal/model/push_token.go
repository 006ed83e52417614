package model

import "time"

type PushToken struct {
	UserID      int64     `json:"user_id"`
	DeviceToken string    `json:"device_token"`
	UpdatedAt   time.Time `json:"updated_at"`
}
