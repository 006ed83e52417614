package router

import (
	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/internal/http/handler"
)

func QuestionRouter(router *gin.RouterGroup, h *handler.QuestionHandler) {
	router.POST("", h.Submit)
	router.GET("/:id/status", h.Status)
	router.GET("/:id/insight", h.Insight)
	router.POST("/:id/dialog/:role", h.Advance)
	router.GET("/:id/dialog/:role", h.Transcript)
	router.POST("/:id/partner/complete", h.CompletePartner)
	router.POST("/:id/decline", h.Decline)
}

func PartnerRouter(router *gin.RouterGroup, h *handler.PartnerHandler) {
	router.POST("/link", h.Link)
}

func SafetyRouter(router *gin.RouterGroup, h *handler.SafetyHandler) {
	router.POST("/check", h.Check)
}
