package http

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"instagrid/internal/domain/models"
	"instagrid/internal/instagram"
	"instagrid/internal/lib/logger/sl"
	publishsvc "instagrid/internal/services/publish_service"
	"instagrid/internal/storage"
	"instagrid/internal/transport/http/dto"
	"instagrid/internal/transport/http/dto/response"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type DraftService interface {
	CreateDraft(ctx context.Context, req dto.SaveDraftRequest) (*models.Draft, error)
	ListDrafts(ctx context.Context) ([]models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	UpdateDraft(ctx context.Context, id uuid.UUID, req dto.UpdateDraftRequest) (*models.Draft, error)
	DeleteDraft(ctx context.Context, id uuid.UUID) error
	GetImageBytes(ctx context.Context, key string) ([]byte, error)
}

type PublishService interface {
	PublishDraft(ctx context.Context, draftID uuid.UUID, creds models.Credentials, force bool) (*models.PublishAttempt, error)
	PublishGrid(ctx context.Context, posts []models.PublishPost, creds models.Credentials) (*models.PublishAttempt, error)
}

type AnalysisService interface {
	AnalyzeGrid(ctx context.Context, images [][]byte, commonContext string, imageContexts []string) (*models.AnalysisResult, error)
	RegenerateCaption(ctx context.Context, req dto.RegenerateCaptionRequest) (string, error)
}

type CredentialStore interface {
	SaveCredentials(ctx context.Context, creds models.Credentials, tokenType string) error
	GetCredentials(ctx context.Context) (models.Credentials, error)
}

type MediaBrowser interface {
	RecentMedia(ctx context.Context, userID, token string, limit int) ([]instagram.Media, error)
}

const recentMediaLimit = 12

type Routers struct {
	log             *slog.Logger
	DraftService    DraftService
	PublishService  PublishService
	AnalysisService AnalysisService
	Credentials     CredentialStore
	Browser         MediaBrowser

	// fallback when neither the request nor the store has credentials
	defaultCreds models.Credentials
}

func NewRouter(log *slog.Logger, drafts DraftService, publisher PublishService, analyzer AnalysisService, creds CredentialStore, browser MediaBrowser, defaultCreds models.Credentials) *Routers {
	return &Routers{
		log:             log,
		DraftService:    drafts,
		PublishService:  publisher,
		AnalysisService: analyzer,
		Credentials:     creds,
		Browser:         browser,
		defaultCreds:    defaultCreds,
	}
}

func (r *Routers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetConfig tells the UI which credentials it can omit from requests.
func (r *Routers) GetConfig(c echo.Context) error {
	creds := r.resolveCredentials(c.Request().Context(), "", "")
	return c.JSON(http.StatusOK, response.SuccessResponse(map[string]any{
		"ig_user_id":       creds.UserID,
		"token_configured": creds.AccessToken != "",
	}))
}

// Analyze takes exactly 3 multipart images plus optional context form fields
// and returns the grid analysis.
func (r *Routers) Analyze(c echo.Context) error {
	const op = "http.routers.Analyze"

	log := r.log.With(slog.String("op", op))

	form, err := c.MultipartForm()
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	files := form.File["files"]
	if len(files) != models.GridSize {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidSlotCount)
	}

	images := make([][]byte, 0, models.GridSize)
	for _, fh := range files {
		data, err := readMultipartFile(fh)
		if err != nil {
			log.Warn("unreadable upload", slog.String("filename", fh.Filename), sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
		}
		images = append(images, data)
	}

	imageContexts := []string{
		c.FormValue("context_0"),
		c.FormValue("context_1"),
		c.FormValue("context_2"),
	}

	result, err := r.AnalysisService.AnalyzeGrid(c.Request().Context(), images, c.FormValue("user_context"), imageContexts)
	if err != nil {
		log.Error("analysis failed", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrorResponseWithDetails("analysis_failed", err.Error()))
	}

	return c.JSON(http.StatusOK, result)
}

func (r *Routers) RegenerateCaption(c echo.Context) error {
	const op = "http.routers.RegenerateCaption"

	log := r.log.With(slog.String("op", op))

	var req dto.RegenerateCaptionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	caption, err := r.AnalysisService.RegenerateCaption(c.Request().Context(), req)
	if err != nil {
		log.Error("caption regeneration failed", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrorResponseWithDetails("regeneration_failed", err.Error()))
	}

	return c.JSON(http.StatusOK, dto.RegenerateCaptionResponse{Caption: caption})
}

// PublishGrid publishes three ad-hoc posts without persisting a draft.
func (r *Routers) PublishGrid(c echo.Context) error {
	const op = "http.routers.PublishGrid"

	log := r.log.With(slog.String("op", op))

	var req dto.PublishGridRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}
	if len(req.Posts) != models.GridSize {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidSlotCount)
	}

	posts := make([]models.PublishPost, 0, models.GridSize)
	for idx, item := range req.Posts {
		data, err := base64.StdEncoding.DecodeString(item.ImageBase64)
		if err != nil {
			log.Warn("invalid image encoding", slog.Int("slot", idx), sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "image_base64 is not valid base64"))
		}
		posts = append(posts, models.PublishPost{
			ImageBytes: data,
			Caption:    item.Caption,
			CropRatio:  models.CropRatioOriginal,
			CropPos:    models.DefaultCropPosition(),
		})
	}

	creds := r.resolveCredentials(c.Request().Context(), req.AccessToken, req.IGUserID)
	r.rememberCredentials(c.Request().Context(), req.AccessToken, req.IGUserID)

	attempt, err := r.PublishService.PublishGrid(c.Request().Context(), posts, creds)
	if err != nil {
		return r.publishError(c, log, attempt, err)
	}

	return c.JSON(http.StatusOK, publishResponse(attempt, ""))
}

// RecentPosts returns a small preview of the account's latest published media.
func (r *Routers) RecentPosts(c echo.Context) error {
	const op = "http.routers.RecentPosts"

	log := r.log.With(slog.String("op", op))

	creds := r.resolveCredentials(c.Request().Context(), c.QueryParam("access_token"), c.QueryParam("ig_user_id"))
	if !creds.Complete() {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("missing_credentials", "access_token and ig_user_id are required"))
	}

	limit := recentMediaLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	media, err := r.Browser.RecentMedia(c.Request().Context(), creds.UserID, creds.AccessToken, limit)
	if err != nil {
		log.Error("failed to fetch recent media", sl.Err(err))
		return c.JSON(http.StatusBadGateway, response.ErrorResponseWithDetails("instagram_unavailable", err.Error()))
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(media))
}

func (r *Routers) SaveDraft(c echo.Context) error {
	const op = "http.routers.SaveDraft"

	log := r.log.With(slog.String("op", op))

	var req dto.SaveDraftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	draft, err := r.DraftService.CreateDraft(c.Request().Context(), req)
	if err != nil {
		return r.draftError(c, log, err)
	}

	log.Info("draft created", slog.String("draft_id", draft.ID.String()))
	return c.JSON(http.StatusCreated, dto.DraftResponse{Draft: draft})
}

func (r *Routers) ListDrafts(c echo.Context) error {
	const op = "http.routers.ListDrafts"

	log := r.log.With(slog.String("op", op))

	drafts, err := r.DraftService.ListDrafts(c.Request().Context())
	if err != nil {
		return r.draftError(c, log, err)
	}

	return c.JSON(http.StatusOK, dto.DraftListResponse{Drafts: drafts})
}

func (r *Routers) UpdateDraft(c echo.Context) error {
	const op = "http.routers.UpdateDraft"

	log := r.log.With(slog.String("op", op))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "invalid draft ID format"))
	}

	var req dto.UpdateDraftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}
	if req.Empty() {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "update contains no fields"))
	}

	draft, err := r.DraftService.UpdateDraft(c.Request().Context(), id, req)
	if err != nil {
		return r.draftError(c, log, err)
	}

	return c.JSON(http.StatusOK, dto.DraftResponse{Draft: draft})
}

func (r *Routers) DeleteDraft(c echo.Context) error {
	const op = "http.routers.DeleteDraft"

	log := r.log.With(slog.String("op", op))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "invalid draft ID format"))
	}

	if err := r.DraftService.DeleteDraft(c.Request().Context(), id); err != nil {
		return r.draftError(c, log, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// PublishDraft publishes a saved draft. 409 on an already-posted draft unless
// force is set.
func (r *Routers) PublishDraft(c echo.Context) error {
	const op = "http.routers.PublishDraft"

	log := r.log.With(slog.String("op", op))

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "invalid draft ID format"))
	}

	var req dto.PublishDraftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	creds := r.resolveCredentials(c.Request().Context(), req.AccessToken, req.IGUserID)
	r.rememberCredentials(c.Request().Context(), req.AccessToken, req.IGUserID)

	attempt, err := r.PublishService.PublishDraft(c.Request().Context(), id, creds, req.Force)
	if err != nil {
		return r.publishError(c, log, attempt, err)
	}

	log.Info("draft published", slog.String("draft_id", id.String()))
	return c.JSON(http.StatusOK, publishResponse(attempt, id.String()))
}

// DraftImage serves stored draft image bytes by filename, for backends
// without presigned URLs.
func (r *Routers) DraftImage(c echo.Context) error {
	const op = "http.routers.DraftImage"

	log := r.log.With(slog.String("op", op))

	filename := c.Param("filename")
	if filename == "" || filename != path.Base(filename) {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "invalid filename"))
	}

	data, err := r.DraftService.GetImageBytes(c.Request().Context(), "drafts/images/"+filename)
	if err != nil {
		if errors.Is(err, storage.ErrStorageUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		}
		log.Warn("image not found", slog.String("filename", filename), sl.Err(err))
		return c.JSON(http.StatusNotFound, response.ErrDraftNotFound)
	}

	return c.Blob(http.StatusOK, "image/jpeg", data)
}

// resolveCredentials prefers request values, then the stored pair, then the
// configured defaults. Partial overrides merge field by field.
func (r *Routers) resolveCredentials(ctx context.Context, token, userID string) models.Credentials {
	creds := models.Credentials{AccessToken: token, UserID: userID}
	if creds.Complete() {
		return creds
	}

	stored, err := r.Credentials.GetCredentials(ctx)
	if err != nil && !errors.Is(err, storage.ErrNoCredentials) {
		r.log.Warn("could not load stored credentials", sl.Err(err))
	}

	if creds.AccessToken == "" {
		creds.AccessToken = stored.AccessToken
	}
	if creds.UserID == "" {
		creds.UserID = stored.UserID
	}
	if creds.AccessToken == "" {
		creds.AccessToken = r.defaultCreds.AccessToken
	}
	if creds.UserID == "" {
		creds.UserID = r.defaultCreds.UserID
	}
	return creds
}

// rememberCredentials persists request-supplied credentials so later requests
// can omit them. Best effort.
func (r *Routers) rememberCredentials(ctx context.Context, token, userID string) {
	creds := models.Credentials{AccessToken: token, UserID: userID}
	if !creds.Complete() {
		return
	}
	if err := r.Credentials.SaveCredentials(ctx, creds, "manual"); err != nil {
		r.log.Warn("could not persist credentials", sl.Err(err))
	}
}

func (r *Routers) draftError(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, storage.ErrDraftNotFound):
		return c.JSON(http.StatusNotFound, response.ErrDraftNotFound)
	case errors.Is(err, models.ErrInvalidSlotCount):
		return c.JSON(http.StatusBadRequest, response.ErrInvalidSlotCount)
	case errors.Is(err, models.ErrInvalidPermutation),
		errors.Is(err, models.ErrInvalidCropRatio):
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	case errors.Is(err, storage.ErrStorageUnavailable):
		log.Error("blob storage unavailable", sl.Err(err))
		return c.JSON(http.StatusServiceUnavailable, response.ErrStorageUnavailable)
	default:
		log.Error("draft operation failed", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrorResponseWithDetails("internal_error", "Internal server error"))
	}
}

func (r *Routers) publishError(c echo.Context, log *slog.Logger, attempt *models.PublishAttempt, err error) error {
	switch {
	case errors.Is(err, storage.ErrAlreadyPosted):
		return c.JSON(http.StatusConflict, response.ErrAlreadyPosted)
	case errors.Is(err, storage.ErrDraftNotFound):
		return c.JSON(http.StatusNotFound, response.ErrDraftNotFound)
	case errors.Is(err, publishsvc.ErrMissingCredentials):
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("missing_credentials", "access_token and ig_user_id are required"))
	case errors.Is(err, models.ErrInvalidSlotCount):
		return c.JSON(http.StatusBadRequest, response.ErrInvalidSlotCount)
	case errors.Is(err, storage.ErrStorageUnavailable):
		log.Error("blob storage unavailable", sl.Err(err))
		return c.JSON(http.StatusServiceUnavailable, response.ErrStorageUnavailable)
	case errors.Is(err, instagram.ErrRemoteRejected),
		errors.Is(err, instagram.ErrUnavailable),
		errors.Is(err, publishsvc.ErrPublishTimeout):
		log.Error("publish failed", sl.Err(err))
		resp := response.ErrorResponseWithDetails("publish_failed", err.Error())
		body := map[string]any{"error": resp}
		if attempt != nil {
			body["outcomes"] = attempt.Outcomes
			body["logs"] = attempt.Log
		}
		return c.JSON(http.StatusBadGateway, body)
	default:
		log.Error("publish failed", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrorResponseWithDetails("internal_error", "Internal server error"))
	}
}

func publishResponse(attempt *models.PublishAttempt, draftID string) dto.PublishResponse {
	resp := dto.PublishResponse{
		DraftID:  draftID,
		Success:  attempt.Success,
		Outcomes: attempt.Outcomes,
		Logs:     attempt.Log,
	}
	if ids, ok := attempt.RemoteMediaIDsInVisualOrder(); ok {
		resp.RemoteMediaIDs = ids
	}
	return resp
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
