package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/service"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/response"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/storage"
)

// MediaHandler wires HTTP endpoints to the media service. Downloads go
// through signed tokens so stored files are never served unauthenticated.
type MediaHandler struct {
	service *service.MediaService
	signer  *storage.SignedURLSigner
}

// NewMediaHandler creates a new handler.
func NewMediaHandler(svc *service.MediaService, signer *storage.SignedURLSigner) *MediaHandler {
	return &MediaHandler{service: svc, signer: signer}
}

// List godoc
// @Summary List media
// @Description List photos and documents within the caller's scope
// @Tags Media
// @Produce json
// @Param student_id query string false "Filter by tagged student"
// @Param type query string false "Filter by media type (photo or document)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.MediaFilter
	filter.Page, filter.PageSize = parsePagination(c)
	filter.StudentID = c.Query("student_id")
	filter.UploadedBy = c.Query("uploaded_by")
	if v := c.Query("type"); v != "" {
		mediaType := models.MediaType(v)
		filter.Type = &mediaType
	}

	media, pagination, err := h.service.List(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, media, pagination)
}

// Get godoc
// @Summary Get media item
// @Tags Media
// @Produce json
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	media, err := h.service.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, media, nil)
}

// Upload godoc
// @Summary Upload media
// @Description Upload a photo or document and tag it to students. Staff only.
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param type formData string true "Media type (photo or document)"
// @Param caption formData string false "Caption"
// @Param student_ids formData string true "Comma separated student IDs"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}

	req := service.UploadMediaRequest{
		Type:     models.MediaType(c.PostForm("type")),
		Filename: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
	}
	if caption := c.PostForm("caption"); caption != "" {
		req.Caption = &caption
	}
	req.StudentIDs = c.PostFormArray("student_ids")
	if len(req.StudentIDs) == 1 && strings.Contains(req.StudentIDs[0], ",") {
		req.StudentIDs = strings.Split(req.StudentIDs[0], ",")
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	media, err := h.service.Upload(c.Request.Context(), principal, req, file)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, media)
}

// SignedURL godoc
// @Summary Issue download link
// @Description Issue a short-lived signed download link for a media item
// @Tags Media
// @Produce json
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id}/url [get]
func (h *MediaHandler) SignedURL(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	url, err := h.service.SignedURL(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"url": url}, nil)
}

// Download serves a stored object referenced by a signed token. No JWT is
// required; the token itself carries the authorization.
//
// Download godoc
// @Summary Download file
// @Description Stream a stored file referenced by a signed token
// @Tags Media
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /media/files [get]
func (h *MediaHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token required"))
		return
	}

	key, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token"))
		return
	}

	file, err := h.service.OpenByKey(key)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file"))
		return
	}

	http.ServeContent(c.Writer, c.Request, filepath.Base(key), stat.ModTime(), file)
}

// Delete godoc
// @Summary Delete media
// @Description Remove the media row and the stored object. Uploader or admin only.
// @Tags Media
// @Produce json
// @Param id path string true "Media ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
