package dto

import (
	"safetalk.app/mediator/internal/model"
	"safetalk.app/mediator/internal/safety"
)

type LinkPartnerRequest struct {
	InviteCode string `json:"invite_code" binding:"required,min=4,max=64"`
}

type PartnerResponse struct {
	UserID     int64  `json:"user_id,string"`
	PartnerID  *int64 `json:"partner_id,string,omitempty"`
	FullName   string `json:"full_name"`
	InviteCode string `json:"invite_code"`
}

func ToPartnerResponse(u *model.User) *PartnerResponse {
	return &PartnerResponse{
		UserID:     u.ID,
		PartnerID:  u.PartnerID,
		FullName:   u.FullName,
		InviteCode: u.InviteCode,
	}
}

type SafetyCheckRequest struct {
	Text string `json:"text" binding:"required,min=1,max=4000"`
}

type SafetyCheckResponse struct {
	Classification safety.Classification `json:"classification"`
	Guidance       *safety.Guidance      `json:"guidance,omitempty"`
}
