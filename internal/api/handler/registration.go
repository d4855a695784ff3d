package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/service"
)

// RegistrationHandler handles identity registration.
type RegistrationHandler struct {
	memes *service.MemeService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(memes *service.MemeService) *RegistrationHandler {
	return &RegistrationHandler{memes: memes}
}

type registrationRequest struct {
	requesterRequest
	Language string `json:"language"`
}

// Register handles POST /api/v1/registrations.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := req.requester()
	if err != nil {
		badRequest(c, err)
		return
	}
	lang, err := domain.ParseLanguage(req.Language)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.memes.Register(c.Request.Context(), r.Identity(), lang); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"identity": r.Identity(),
		"language": lang,
	})
}

// SetLanguage handles PUT /api/v1/registrations/language.
func (h *RegistrationHandler) SetLanguage(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := req.requester()
	if err != nil {
		badRequest(c, err)
		return
	}
	lang, err := domain.ParseLanguage(req.Language)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.memes.SetLanguage(c.Request.Context(), r.Identity(), lang); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identity": r.Identity(),
		"language": lang,
	})
}

// Get handles GET /api/v1/registrations.
func (h *RegistrationHandler) Get(c *gin.Context) {
	r, err := bindRequester(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()

	registered, err := h.memes.IsRegistered(ctx, r.Identity())
	if err != nil {
		respondError(c, err)
		return
	}
	lang, err := h.memes.LanguageFor(ctx, r)
	if err != nil {
		respondError(c, err)
		return
	}
	memeLang, err := h.memes.MemeLanguage(ctx, r, "")
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":      r.Identity(),
		"registered":    registered,
		"language":      lang,
		"meme_language": memeLang,
	})
}
