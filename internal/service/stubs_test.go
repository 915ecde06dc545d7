package service

import (
	"context"
	"log/slog"
	"testing"

	"modmixx/internal/config"
	"modmixx/internal/featureflags"
	"modmixx/internal/models"
	"modmixx/internal/moderation"
	"modmixx/internal/storage"
	"modmixx/internal/testutil"
	"modmixx/internal/textguard"
	"modmixx/internal/upload"

	"github.com/stretchr/testify/require"
)

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	if fieldErrs, ok := err.(*models.FieldErrors); ok {
		require.True(t, fieldErrs.HasErrors())
		return
	}
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn    func(context.Context, uint) (*models.User, error)
	getByEmailFn func(context.Context, string) (*models.User, error)
	createFn     func(context.Context, *models.User) error
	updateFn     func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn:    func(_ context.Context, id uint) (*models.User, error) { return &models.User{ID: id}, nil },
		getByEmailFn: func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:     func(_ context.Context, _ *models.User) error { return nil },
		updateFn:     func(_ context.Context, _ *models.User) error { return nil },
	}
}

// profileRepoStub is a stub for repository.ProfileRepository.
type profileRepoStub struct {
	getByUserIDFn            func(context.Context, uint) (*models.Profile, error)
	getByUsernameFn          func(context.Context, string) (*models.Profile, error)
	createFn                 func(context.Context, *models.Profile) error
	updateFn                 func(context.Context, *models.Profile) error
	listWithPicturesFn       func(context.Context, models.ModerationStatus) ([]models.Profile, error)
	listByModerationStatusFn func(context.Context, models.ModerationStatus, int, int) ([]models.Profile, error)
}

func (s *profileRepoStub) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	return s.getByUserIDFn(ctx, userID)
}
func (s *profileRepoStub) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *profileRepoStub) Create(ctx context.Context, profile *models.Profile) error {
	return s.createFn(ctx, profile)
}
func (s *profileRepoStub) Update(ctx context.Context, profile *models.Profile) error {
	return s.updateFn(ctx, profile)
}
func (s *profileRepoStub) ListWithPictures(ctx context.Context, status models.ModerationStatus) ([]models.Profile, error) {
	return s.listWithPicturesFn(ctx, status)
}
func (s *profileRepoStub) ListByModerationStatus(ctx context.Context, status models.ModerationStatus, limit, offset int) ([]models.Profile, error) {
	return s.listByModerationStatusFn(ctx, status, limit, offset)
}

func noopProfileRepo() *profileRepoStub {
	return &profileRepoStub{
		getByUserIDFn: func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{ID: userID, UserID: userID, Username: "user"}, nil
		},
		getByUsernameFn: func(_ context.Context, username string) (*models.Profile, error) {
			return &models.Profile{ID: 1, UserID: 1, Username: username}, nil
		},
		createFn: func(_ context.Context, _ *models.Profile) error { return nil },
		updateFn: func(_ context.Context, _ *models.Profile) error { return nil },
		listWithPicturesFn: func(_ context.Context, _ models.ModerationStatus) ([]models.Profile, error) {
			return nil, nil
		},
		listByModerationStatusFn: func(_ context.Context, _ models.ModerationStatus, _, _ int) ([]models.Profile, error) {
			return nil, nil
		},
	}
}

// trackRepoStub is a stub for repository.TrackRepository.
type trackRepoStub struct {
	createFn                 func(context.Context, *models.Track) error
	getByIDFn                func(context.Context, uint) (*models.Track, error)
	getBySlugFn              func(context.Context, string) (*models.Track, error)
	updateFn                 func(context.Context, *models.Track) error
	deleteFn                 func(context.Context, uint) error
	listFn                   func(context.Context, int, int) ([]models.Track, error)
	listByUserFn             func(context.Context, uint) ([]models.Track, error)
	slugExistsFn             func(context.Context, string) (bool, error)
	listWithArtworkFn        func(context.Context, models.ModerationStatus) ([]models.Track, error)
	listByModerationStatusFn func(context.Context, models.ModerationStatus, int, int) ([]models.Track, error)
}

func (s *trackRepoStub) Create(ctx context.Context, track *models.Track) error {
	return s.createFn(ctx, track)
}
func (s *trackRepoStub) GetByID(ctx context.Context, id uint) (*models.Track, error) {
	return s.getByIDFn(ctx, id)
}
func (s *trackRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Track, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *trackRepoStub) Update(ctx context.Context, track *models.Track) error {
	return s.updateFn(ctx, track)
}
func (s *trackRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *trackRepoStub) List(ctx context.Context, limit, offset int) ([]models.Track, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *trackRepoStub) ListByUser(ctx context.Context, userID uint) ([]models.Track, error) {
	return s.listByUserFn(ctx, userID)
}
func (s *trackRepoStub) SlugExists(ctx context.Context, slug string) (bool, error) {
	return s.slugExistsFn(ctx, slug)
}
func (s *trackRepoStub) ListWithArtwork(ctx context.Context, status models.ModerationStatus) ([]models.Track, error) {
	return s.listWithArtworkFn(ctx, status)
}
func (s *trackRepoStub) ListByModerationStatus(ctx context.Context, status models.ModerationStatus, limit, offset int) ([]models.Track, error) {
	return s.listByModerationStatusFn(ctx, status, limit, offset)
}

func noopTrackRepo() *trackRepoStub {
	return &trackRepoStub{
		createFn: func(_ context.Context, t *models.Track) error {
			if t.ID == 0 {
				t.ID = 1
			}
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Track, error) {
			return &models.Track{ID: id, UserID: 1, AudioPath: "tracks/audio/x.mp3"}, nil
		},
		getBySlugFn: func(_ context.Context, slug string) (*models.Track, error) {
			return &models.Track{ID: 1, UserID: 1, Slug: slug, AudioPath: "tracks/audio/x.mp3"}, nil
		},
		updateFn:     func(_ context.Context, _ *models.Track) error { return nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
		listFn:       func(_ context.Context, _, _ int) ([]models.Track, error) { return nil, nil },
		listByUserFn: func(_ context.Context, _ uint) ([]models.Track, error) { return nil, nil },
		slugExistsFn: func(_ context.Context, _ string) (bool, error) { return false, nil },
		listWithArtworkFn: func(_ context.Context, _ models.ModerationStatus) ([]models.Track, error) {
			return nil, nil
		},
		listByModerationStatusFn: func(_ context.Context, _ models.ModerationStatus, _, _ int) ([]models.Track, error) {
			return nil, nil
		},
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn       func(context.Context, *models.Comment) error
	getByIDFn      func(context.Context, uint) (*models.Comment, error)
	listByTrackFn  func(context.Context, uint) ([]*models.Comment, error)
	updateFn       func(context.Context, *models.Comment) error
	deleteFn       func(context.Context, uint) error
	countRepliesFn func(context.Context, uint) (int64, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByTrack(ctx context.Context, trackID uint) ([]*models.Comment, error) {
	return s.listByTrackFn(ctx, trackID)
}
func (s *commentRepoStub) Update(ctx context.Context, comment *models.Comment) error {
	return s.updateFn(ctx, comment)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *commentRepoStub) CountReplies(ctx context.Context, parentID uint) (int64, error) {
	return s.countRepliesFn(ctx, parentID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			if c.ID == 0 {
				c.ID = 1
			}
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, UserID: 1, TrackID: 1}, nil
		},
		listByTrackFn:  func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		updateFn:       func(_ context.Context, _ *models.Comment) error { return nil },
		deleteFn:       func(_ context.Context, _ uint) error { return nil },
		countRepliesFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// imageScannerStub is a stub for moderation.ImageScanner.
type imageScannerStub struct {
	scanFn func(context.Context, []byte) moderation.ScanResult
	calls  int
}

func (s *imageScannerStub) Scan(ctx context.Context, imageBytes []byte) moderation.ScanResult {
	s.calls++
	return s.scanFn(ctx, imageBytes)
}

func approvingScanner() *imageScannerStub {
	return &imageScannerStub{
		scanFn: func(_ context.Context, _ []byte) moderation.ScanResult {
			return moderation.ScanResult{Allowed: true, Labels: models.ModerationLabels{}}
		},
	}
}

func rejectingScanner(label string, confidence float64) *imageScannerStub {
	return &imageScannerStub{
		scanFn: func(_ context.Context, _ []byte) moderation.ScanResult {
			return moderation.ScanResult{
				Allowed: false,
				Labels:  models.ModerationLabels{{Name: label, Confidence: confidence}},
			}
		},
	}
}

func failingScanner() *imageScannerStub {
	return &imageScannerStub{
		scanFn: func(_ context.Context, _ []byte) moderation.ScanResult {
			return moderation.ScanResult{Allowed: true, Failed: true}
		},
	}
}

// toxicityScorerStub is a stub for moderation.ToxicityScorer.
type toxicityScorerStub struct {
	score float64
	err   error
}

func (s *toxicityScorerStub) Score(_ context.Context, _ string) (float64, error) {
	return s.score, s.err
}

// testEnv bundles the shared plumbing most service tests need.
type testEnv struct {
	store     *testutil.ObjectStoreStub
	cleaner   *storage.Cleaner
	guard     *textguard.Guard
	validator *upload.Validator
	scorer    *toxicityScorerStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		MaxAudioUploadMB:  100,
		MaxImageUploadMB:  10,
		ToxicityThreshold: 0.7,
	}
	store := testutil.NewObjectStoreStub()
	scorer := &toxicityScorerStub{score: 0.1}
	return &testEnv{
		store:     store,
		cleaner:   storage.NewCleaner(store, slog.Default()),
		guard:     textguard.NewGuard(scorer, featureflags.NewManager(""), cfg, nil),
		validator: upload.NewValidator(cfg),
		scorer:    scorer,
	}
}

func (e *testEnv) moderationService(scanner moderation.ImageScanner, profileRepo *profileRepoStub, trackRepo *trackRepoStub) *ModerationService {
	if profileRepo == nil {
		profileRepo = noopProfileRepo()
	}
	if trackRepo == nil {
		trackRepo = noopTrackRepo()
	}
	return NewModerationService(scanner, e.store, profileRepo, trackRepo, slog.Default())
}

func audioUpload() upload.NewUpload {
	return upload.NewUpload{Name: "song.mp3", ContentType: "audio/mpeg", Content: []byte("riff")}
}

func imageUpload() upload.NewUpload {
	return upload.NewUpload{Name: "cover.png", ContentType: "image/png", Content: []byte("png")}
}
