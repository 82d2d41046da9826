package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/media"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/services"
)

const (
	imageField      = "featuredImage"
	multipartMemory = 8 << 20
	formOverhead    = 1 << 20
)

// Summarizer produces a summary of a post.
type Summarizer interface {
	Summarize(ctx context.Context, slug string) (models.Summary, error)
}

// UploadLimits bounds featured image uploads.
type UploadLimits struct {
	MaxSize         int64
	TooLargeMessage string
}

// PostHandler handles HTTP requests for posts.
type PostHandler struct {
	service    services.PostServiceProvider
	summarizer Summarizer
	errs       *ErrorResponder
	limits     UploadLimits
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service services.PostServiceProvider, summarizer Summarizer, errs *ErrorResponder, limits UploadLimits) *PostHandler {
	return &PostHandler{service: service, summarizer: summarizer, errs: errs, limits: limits}
}

type postResponse struct {
	Post models.Post `json:"post"`
}

type postListResponse struct {
	Total int           `json:"total"`
	Posts []models.Post `json:"posts"`
}

// postForm holds the text fields and optional image of a post request.
type postForm struct {
	title, slug, content, status string
	image                        *media.Upload
	closer                       multipart.File
}

func (f *postForm) Close() {
	if f.closer != nil {
		f.closer.Close()
	}
}

// Create handles a multipart post creation request.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFrom(r.Context())
	if !ok {
		h.errs.Write(w, r, apperror.NewUnauthorized("Not authorized", nil))
		return
	}

	form, err := h.parseForm(w, r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	defer form.Close()

	post, err := h.service.Create(r.Context(), actor, services.CreatePostInput{
		Title:   form.title,
		Slug:    form.slug,
		Content: form.content,
		Status:  form.status,
		Image:   form.image,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Post created successfully", postResponse{Post: post})
}

// Update handles a multipart post update request from the owner.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFrom(r.Context())
	if !ok {
		h.errs.Write(w, r, apperror.NewUnauthorized("Not authorized", nil))
		return
	}

	form, err := h.parseForm(w, r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	defer form.Close()

	post, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "slug"), services.UpdatePostInput{
		Title:   form.title,
		Content: form.content,
		Status:  form.status,
		Image:   form.image,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Post updated successfully", postResponse{Post: post})
}

// Delete removes a post owned by the caller.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFrom(r.Context())
	if !ok {
		h.errs.Write(w, r, apperror.NewUnauthorized("Not authorized", nil))
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "slug")); err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Post deleted successfully"})
}

// Get returns a single post by slug.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", postResponse{Post: post})
}

// List returns all posts, optionally filtered by status and userId.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, models.PostFilter{Status: q.Get("status"), OwnerID: q.Get("userId")})
}

// ListMine returns the caller's own posts.
func (h *PostHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.UserFrom(r.Context())
	if !ok {
		h.errs.Write(w, r, apperror.NewUnauthorized("Not authorized", nil))
		return
	}
	h.list(w, r, models.PostFilter{OwnerID: actor.ID})
}

func (h *PostHandler) list(w http.ResponseWriter, r *http.Request, filter models.PostFilter) {
	posts, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", postListResponse{Total: len(posts), Posts: posts})
}

// Summarize returns a generated summary of the post's content.
func (h *PostHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	summary, err := h.summarizer.Summarize(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", summary)
}

// parseForm reads post fields from a multipart, urlencoded or JSON body.
func (h *PostHandler) parseForm(w http.ResponseWriter, r *http.Request) (*postForm, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Title   string `json:"title"`
			Slug    string `json:"slug"`
			Content string `json:"content"`
			Status  string `json:"status"`
		}
		if err := decodeJSON(w, r, &payload); err != nil {
			return nil, err
		}
		return &postForm{title: payload.Title, slug: payload.Slug, content: payload.Content, status: payload.Status}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxSize+formOverhead)
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.NewInvalidMedia(h.limits.TooLargeMessage, err)
		}
		return nil, apperror.New(apperror.Validation, "Invalid form data", err)
	}

	form := &postForm{
		title:   r.FormValue("title"),
		slug:    r.FormValue("slug"),
		content: r.FormValue("content"),
		status:  r.FormValue("status"),
	}

	file, header, err := r.FormFile(imageField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return form, nil
	case err != nil:
		return nil, apperror.NewInvalidMedia("Failed to read uploaded file", err)
	}
	if header.Size > h.limits.MaxSize {
		file.Close()
		return nil, apperror.NewInvalidMedia(h.limits.TooLargeMessage, nil)
	}
	form.closer = file
	form.image = &media.Upload{Filename: header.Filename, Content: file}
	return form, nil
}
