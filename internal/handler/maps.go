package handler

import (
	"errors"
	"net/http"

	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/service"
)

// MapHandler serves the map catalog.
type MapHandler struct {
	catalog        *service.CatalogService
	maxUploadBytes int64
}

// NewMapHandler creates a MapHandler.
func NewMapHandler(catalog *service.CatalogService, maxUploadBytes int64) *MapHandler {
	return &MapHandler{catalog: catalog, maxUploadBytes: maxUploadBytes}
}

type createMapRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
	Players     string  `json:"players" validate:"max=50"`
	Tileset     string  `json:"tileset" validate:"max=50"`
	Overview    string  `json:"overview"`
}

type updateMapRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=255"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	Players     *string `json:"players" validate:"omitnil,max=50"`
	Tileset     *string `json:"tileset" validate:"omitnil,max=50"`
	Overview    *string `json:"overview"`
}

// List handles GET /maps.
func (h *MapHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context(), auth.IdentityFromContext(r.Context()), r.URL.Query().Get("title"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, list)
}

// Get handles GET /maps/{id}.
func (h *MapHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// Create handles POST /maps.
func (h *MapHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMapRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.catalog.Create(r.Context(), auth.IdentityFromContext(r.Context()), domain.MapInput{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Players:     req.Players,
		Tileset:     req.Tileset,
		Overview:    req.Overview,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, m)
}

// Update handles PUT /maps/{id}. Omitted fields are left unchanged.
func (h *MapHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	var req updateMapRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, err)
		return
	}
	m, err := h.catalog.Update(r.Context(), auth.IdentityFromContext(r.Context()), id, domain.MapPatch{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Players:     req.Players,
		Tileset:     req.Tileset,
		Overview:    req.Overview,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /maps/{id}.
func (h *MapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.catalog.Delete(r.Context(), auth.IdentityFromContext(r.Context()), id); err != nil {
		RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /maps/{id}/image with a multipart "image" field.
func (h *MapHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	actor := auth.IdentityFromContext(r.Context())
	if err := auth.Check(actor, auth.RequireStaff); err != nil {
		RespondError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	var upload *service.ImageUpload
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		upload = &service.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		RespondError(w, domain.ErrValidation("invalid multipart upload: "+err.Error()))
		return
	}

	m, err := h.catalog.UploadImage(r.Context(), actor, id, upload)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, m)
}
