package model

import "time"

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	InviteCode string    `json:"invite_code"`
	PartnerID  *int64    `json:"partner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) HasPartner() bool {
	return u.PartnerID != nil
}
