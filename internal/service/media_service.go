package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/authz"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/internal/models"
	appErrors "github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/errors"
	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/storage"
)

type mediaRepository interface {
	Create(ctx context.Context, media *models.StudentMedia, studentIDs []string) error
	List(ctx context.Context, filter models.MediaFilter) ([]models.StudentMedia, int, error)
	FindByID(ctx context.Context, id string) (*models.MediaDetail, error)
	TaggedStudentIDs(ctx context.Context, mediaID string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type objectStore interface {
	Upload(r io.Reader, folder, filename string) (*storage.StoredObject, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
	SignedURL(key string) (string, error)
}

// UploadMediaRequest describes an incoming upload. The file stream arrives
// separately from the multipart form.
type UploadMediaRequest struct {
	Type       models.MediaType `json:"type" validate:"required"`
	Caption    *string          `json:"caption"`
	StudentIDs []string         `json:"student_ids" validate:"required,min=1"`
	Filename   string           `json:"-"`
	MIMEType   string           `json:"-"`
	Size       int64            `json:"-"`
}

// MediaConfig bounds uploads.
type MediaConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// MediaService handles photo and document uploads tagged to students.
type MediaService struct {
	repo      mediaRepository
	store     objectStore
	policy    *authz.Policy
	validator *validator.Validate
	logger    *zap.Logger
	config    MediaConfig
}

// NewMediaService constructs the media service.
func NewMediaService(repo mediaRepository, store objectStore, policy *authz.Policy, validate *validator.Validate, logger *zap.Logger, config MediaConfig) *MediaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{repo: repo, store: store, policy: policy, validator: validate, logger: logger, config: config}
}

// List returns the media items visible to the principal: everything for
// admins, items tagged to in-scope students for everyone else.
func (s *MediaService) List(ctx context.Context, principal authz.Principal, filter models.MediaFilter) ([]models.StudentMedia, *models.Pagination, error) {
	scope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	if !scope.All {
		// Lists narrow to the scope and never error: an out-of-scope
		// student filter yields the empty page.
		if filter.StudentID != "" {
			if !scope.Contains(filter.StudentID) {
				return []models.StudentMedia{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
		} else {
			if len(scope.StudentIDs) == 0 {
				return []models.StudentMedia{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
			}
			filter.StudentIDs = scope.StudentIDs
		}
	}

	media, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list media")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return media, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a media item with its tagged students.
func (s *MediaService) Get(ctx context.Context, principal authz.Principal, id string) (*models.MediaDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media")
	}
	if err := s.authorizeMediaRead(ctx, principal, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// Upload stores the file and creates the media row. Every tagged student
// must be inside the uploader's write scope.
func (s *MediaService) Upload(ctx context.Context, principal authz.Principal, req UploadMediaRequest, file io.Reader) (*models.MediaDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown media type")
	}
	if s.config.MaxFileSize > 0 && req.Size > s.config.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if len(s.config.AllowedMIMEs) > 0 && !s.mimeAllowed(req.MIMEType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}
	if err := s.policy.AuthorizeBatch(ctx, principal, req.StudentIDs); err != nil {
		return nil, err
	}

	folder := "documents"
	if req.Type == models.MediaPhoto {
		folder = "photos"
	}
	stored, err := s.store.Upload(file, folder, req.Filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	media := &models.StudentMedia{
		FileURL:    stored.URL,
		StorageKey: stored.Key,
		Type:       req.Type,
		Caption:    req.Caption,
		UploadedBy: principal.ID,
	}
	if err := s.repo.Create(ctx, media, req.StudentIDs); err != nil {
		if cleanupErr := s.store.Delete(stored.Key); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", stored.Key), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save media")
	}

	s.logger.Info("media uploaded",
		zap.String("media_id", media.ID),
		zap.String("type", string(media.Type)),
		zap.Int("students", len(req.StudentIDs)))
	return &models.MediaDetail{StudentMedia: *media, StudentIDs: req.StudentIDs}, nil
}

// SignedURL issues a short-lived download link for a media item.
func (s *MediaService) SignedURL(ctx context.Context, principal authz.Principal, id string) (string, error) {
	detail, err := s.Get(ctx, principal, id)
	if err != nil {
		return "", err
	}
	url, err := s.store.SignedURL(detail.StorageKey)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign url")
	}
	return url, nil
}

// OpenByKey resolves a signed download. The signature check happens in the
// handler; this only opens the underlying file.
func (s *MediaService) OpenByKey(key string) (*os.File, error) {
	file, err := s.store.Open(key)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

// Delete removes the media row and the stored object. Uploader or admin.
func (s *MediaService) Delete(ctx context.Context, principal authz.Principal, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media")
	}
	if !principal.IsAdmin() && detail.UploadedBy != principal.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete another user's upload")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete media")
	}
	if err := s.store.Delete(detail.StorageKey); err != nil {
		s.logger.Warn("failed to remove stored object", zap.String("key", detail.StorageKey), zap.Error(err))
	}
	return nil
}

func (s *MediaService) authorizeMediaRead(ctx context.Context, principal authz.Principal, detail *models.MediaDetail) error {
	if principal.IsAdmin() || detail.UploadedBy == principal.ID {
		return nil
	}
	scope, err := s.policy.ScopeStudents(ctx, principal)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve scope")
	}
	for _, studentID := range detail.StudentIDs {
		if scope.Contains(studentID) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "media outside your scope")
}

func (s *MediaService) mimeAllowed(mime string) bool {
	mime = strings.ToLower(mime)
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}
