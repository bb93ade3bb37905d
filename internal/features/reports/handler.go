package reports

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/tlemoine/signalmap/internal/features/imaging"
	"github.com/tlemoine/signalmap/internal/pkg/response"
	apperrors "github.com/tlemoine/signalmap/pkg/errors"
)

type Handler struct {
	mirror *Mirror
	svc    *Service
	form   *Form
}

func NewHandler(mirror *Mirror, svc *Service, form *Form) *Handler {
	return &Handler{mirror: mirror, svc: svc, form: form}
}

// List returns the active derived view. An optional ?filter=all|mine
// switches the mode first.
func (h *Handler) List(c *gin.Context) {
	if mode := c.Query("filter"); mode != "" {
		if !h.mirror.SetFilter(FilterMode(mode)) {
			response.BadRequest(c, "Unknown filter mode", "INVALID_FILTER")
			return
		}
	}

	response.Success(c, gin.H{
		"filter":  h.mirror.Filter(),
		"reports": h.mirror.Filtered(),
	})
}

// Detail returns one report plus whether the current user may delete it.
func (h *Handler) Detail(c *gin.Context) {
	r, ok := h.mirror.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "Report not found", "NOT_FOUND")
		return
	}

	response.Success(c, gin.H{
		"report":    r,
		"canDelete": h.svc.CanDelete(r),
	})
}

// Delete removes an owned report. The marker disappears when the feed
// echo lands, never optimistically.
func (h *Handler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		response.Success(c, gin.H{"deleted": true})
	case errors.Is(err, apperrors.ErrNotFound):
		response.NotFound(c, "Report not found", "NOT_FOUND")
	case errors.Is(err, apperrors.ErrUnauthorized):
		response.Forbidden(c, "Only the creator can delete a report", "FORBIDDEN")
	default:
		response.InternalServerError(c, err.Error(), "DELETE_FAILED")
	}
}

type openFormRequest struct {
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// OpenForm starts a create session anchored at a coordinate.
func (h *Handler) OpenForm(c *gin.Context) {
	var req openFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	if err := h.form.Open(req.Latitude, req.Longitude); err != nil {
		response.Conflict(c, err.Error(), "FORM_BUSY")
		return
	}
	response.Success(c, h.form.View())
}

// ViewForm returns the current session snapshot.
func (h *Handler) ViewForm(c *gin.Context) {
	response.Success(c, h.form.View())
}

// PatchForm edits the draft fields.
func (h *Handler) PatchForm(c *gin.Context) {
	var patch FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "Invalid request format", "INVALID_JSON")
		return
	}

	if err := h.form.SetFields(patch); err != nil {
		h.formStateError(c, err)
		return
	}
	response.Success(c, h.form.View())
}

// AddPhotos attaches uploaded images to the open form. Uploads past the
// photo cap are truncated and flagged, not rejected.
func (h *Handler) AddPhotos(c *gin.Context) {
	mpForm, err := c.MultipartForm()
	if err != nil {
		response.BadRequest(c, "Multipart form required", "INVALID_FORM")
		return
	}

	files := mpForm.File["photos"]
	if len(files) == 0 {
		response.BadRequest(c, "No photos provided", "MISSING_FILE")
		return
	}

	raws := make([]imaging.RawImage, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, "Unreadable upload", "INVALID_FILE")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			response.BadRequest(c, "Unreadable upload", "INVALID_FILE")
			return
		}
		raws = append(raws, imaging.RawImage{Name: fh.Filename, Data: data})
	}

	captured, truncated, err := imaging.Capture(c.Request.Context(), imaging.StaticSource(raws), imaging.MaxBatch)
	if err != nil {
		response.BadRequest(c, err.Error(), "CAPTURE_FAILED")
		return
	}

	formTruncated, err := h.form.AddPhotos(captured)
	if err != nil {
		h.formStateError(c, err)
		return
	}

	response.Success(c, gin.H{
		"form":      h.form.View(),
		"truncated": truncated || formTruncated,
	})
}

// RemovePhoto drops one pending photo by its local id.
func (h *Handler) RemovePhoto(c *gin.Context) {
	if !h.form.RemovePhoto(c.Param("photoId")) {
		response.NotFound(c, "Photo not found", "NOT_FOUND")
		return
	}
	response.Success(c, h.form.View())
}

// SubmitForm runs compression and the remote create.
func (h *Handler) SubmitForm(c *gin.Context) {
	id, err := h.form.Submit(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrTitleRequired):
			response.ValidationError(c, ErrTitleRequired.Error(), "VALIDATION_FAILED")
		case errors.Is(err, imaging.ErrPhotoTooLarge):
			response.ValidationError(c, photoTooLargeMsg, "PHOTO_TOO_LARGE")
		case errors.Is(err, ErrFormBusy), errors.Is(err, ErrFormClosed):
			h.formStateError(c, err)
		default:
			// Store failures travel verbatim so their diagnostics survive.
			response.InternalServerError(c, err.Error(), "SUBMIT_FAILED")
		}
		return
	}

	response.Created(c, gin.H{"id": id, "form": h.form.View()})
}

// CancelForm discards the session.
func (h *Handler) CancelForm(c *gin.Context) {
	if err := h.form.Cancel(); err != nil {
		h.formStateError(c, err)
		return
	}
	response.Success(c, h.form.View())
}

func (h *Handler) formStateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFormClosed):
		response.Conflict(c, "No form session open", "FORM_CLOSED")
	case errors.Is(err, ErrFormBusy):
		response.Conflict(c, "A submission is already in flight", "FORM_BUSY")
	default:
		response.BadRequest(c, err.Error(), "FORM_ERROR")
	}
}
