package handler

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/service"
)

// MemeHandler handles meme requests.
type MemeHandler struct {
	memes      *service.MemeService
	dispatcher *service.Dispatcher
	filePrefix string
}

// NewMemeHandler creates a new meme handler.
// Parameters:
//   - memes: meme service instance.
//   - dispatcher: worker pool the fetches run on.
//   - filePrefix: URL prefix the download directory is served under.
//
// Returns:
//   - *MemeHandler: initialized handler.
func NewMemeHandler(memes *service.MemeService, dispatcher *service.Dispatcher, filePrefix string) *MemeHandler {
	return &MemeHandler{memes: memes, dispatcher: dispatcher, filePrefix: filePrefix}
}

// memeRequest is the body of POST /api/v1/memes and the session endpoints.
type memeRequest struct {
	requesterRequest
	Keywords string `json:"keywords"`
	Language string `json:"language"`
}

// MemeResponse is returned for every delivered meme.
type MemeResponse struct {
	*service.MemeResult
	FileURL string `json:"file_url"`
}

// RequestMeme handles POST /api/v1/memes.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *MemeHandler) RequestMeme(c *gin.Context) {
	req, r, lang, ok := h.bindSession(c)
	if !ok {
		return
	}
	h.runFlow(c, func(ctx context.Context) (*service.MemeResult, error) {
		memeLang, err := h.memes.MemeLanguage(ctx, r, lang)
		if err != nil {
			return nil, err
		}
		return h.memes.RequestMeme(ctx, r.Identity(), req.Keywords, memeLang)
	})
}

func (h *MemeHandler) response(res *service.MemeResult) MemeResponse {
	return MemeResponse{
		MemeResult: res,
		FileURL:    h.filePrefix + "/" + filepath.Base(res.ImagePath),
	}
}

// runFlow runs a lock-driven meme flow on the dispatcher and writes the
// result.
func (h *MemeHandler) runFlow(c *gin.Context, fn func(ctx context.Context) (*service.MemeResult, error)) {
	res, err := service.Dispatch(c.Request.Context(), h.dispatcher, fn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(res))
}

// bindSession reads a session request body. It writes the 400 response
// itself and reports false on bad input.
func (h *MemeHandler) bindSession(c *gin.Context) (memeRequest, domain.Requester, domain.Language, bool) {
	var req memeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, domain.Requester{}, "", false
	}
	r, err := req.requester()
	if err != nil {
		badRequest(c, err)
		return req, domain.Requester{}, "", false
	}
	lang, err := parseOptionalLanguage(req.Language)
	if err != nil {
		badRequest(c, err)
		return req, domain.Requester{}, "", false
	}
	return req, r, lang, true
}

// Start handles POST /api/v1/sessions/start.
func (h *MemeHandler) Start(c *gin.Context) {
	_, r, _, ok := h.bindSession(c)
	if !ok {
		return
	}
	if err := h.memes.StartSession(c.Request.Context(), r); err != nil {
		respondError(c, err)
		return
	}
	h.writeState(c, r)
}

// SelectMode handles POST /api/v1/sessions/select.
func (h *MemeHandler) SelectMode(c *gin.Context) {
	_, r, _, ok := h.bindSession(c)
	if !ok {
		return
	}
	if err := h.memes.SelectMode(c.Request.Context(), r); err != nil {
		respondError(c, err)
		return
	}
	h.writeState(c, r)
}

// Random handles POST /api/v1/sessions/random.
func (h *MemeHandler) Random(c *gin.Context) {
	_, r, lang, ok := h.bindSession(c)
	if !ok {
		return
	}
	h.runFlow(c, func(ctx context.Context) (*service.MemeResult, error) {
		return h.memes.RandomMeme(ctx, r, lang)
	})
}

// AskKeywords handles POST /api/v1/sessions/keywords.
func (h *MemeHandler) AskKeywords(c *gin.Context) {
	_, r, _, ok := h.bindSession(c)
	if !ok {
		return
	}
	if err := h.memes.AskKeywords(c.Request.Context(), r); err != nil {
		respondError(c, err)
		return
	}
	h.writeState(c, r)
}

// Message handles POST /api/v1/sessions/message: free text that becomes a
// keyword search when the session is waiting for one. Otherwise it
// answers 204 and nothing happens.
func (h *MemeHandler) Message(c *gin.Context) {
	req, r, lang, ok := h.bindSession(c)
	if !ok {
		return
	}

	type outcome struct {
		res     *service.MemeResult
		handled bool
	}
	out, err := service.Dispatch(c.Request.Context(), h.dispatcher, func(ctx context.Context) (outcome, error) {
		res, handled, err := h.memes.SubmitKeywords(ctx, r, req.Keywords, lang)
		return outcome{res: res, handled: handled}, err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if !out.handled {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, h.response(out.res))
}

// Cancel handles POST /api/v1/sessions/cancel.
func (h *MemeHandler) Cancel(c *gin.Context) {
	_, r, _, ok := h.bindSession(c)
	if !ok {
		return
	}
	userID, chatID := r.LockKey()
	if err := h.memes.ClearLock(c.Request.Context(), userID, chatID); err != nil {
		respondError(c, err)
		return
	}
	h.writeState(c, r)
}

// State handles GET /api/v1/sessions/state.
func (h *MemeHandler) State(c *gin.Context) {
	r, err := bindRequester(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.writeState(c, r)
}

func (h *MemeHandler) writeState(c *gin.Context, r domain.Requester) {
	userID, chatID := r.LockKey()
	state, err := h.memes.LockState(c.Request.Context(), userID, chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"chat_id": chatID,
		"code":    int(state),
		"state":   state.String(),
	})
}
