package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"modmixx/internal/models"
	"modmixx/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileService(env *testEnv, profileRepo *profileRepoStub, scanner *imageScannerStub) *ProfileService {
	if profileRepo == nil {
		profileRepo = noopProfileRepo()
	}
	if scanner == nil {
		scanner = approvingScanner()
	}
	modSvc := env.moderationService(scanner, profileRepo, nil)
	return NewProfileService(profileRepo, env.guard, env.validator, modSvc, env.store, env.cleaner, slog.Default())
}

func TestProfileService_UpdateTextFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid update persists guarded values", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		var saved *models.Profile
		profileRepo := noopProfileRepo()
		profileRepo.updateFn = func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		}

		svc := newProfileService(env, profileRepo, nil)
		resp, err := svc.Update(ctx, UpdateProfileInput{
			UserID:      1,
			Username:    "MixMaster",
			DisplayName: "  Mix Master  ",
			Bio:         "I make beats",
			Pronouns:    "they/them",
			Picture:     upload.Unchanged{},
		})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Equal(t, "mixmaster", saved.Username)
		assert.Equal(t, "Mix Master", saved.DisplayName)
		assert.Equal(t, "mixmaster", resp.Username)
	})

	t.Run("all bad fields reported together", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		svc := newProfileService(env, nil, nil)

		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "has spaces",
			Bio:      strings.Repeat("a", models.MaxBioLen+1),
			Picture:  upload.Unchanged{},
		})

		var fieldErrs *models.FieldErrors
		require.ErrorAs(t, err, &fieldErrs)
		fields := fieldErrs.Fields()
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "bio")
	})

	t.Run("toxic bio rejected", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.scorer.score = 0.95
		svc := newProfileService(env, nil, nil)

		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Bio:      "something nasty",
			Picture:  upload.Unchanged{},
		})
		assertValidationError(t, err)
	})
}

func TestProfileService_UpdatePicture(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("new picture stored, scanned, old deleted after persist", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/old.png", []byte("old"), "image/png"))

		var saved *models.Profile
		profileRepo := noopProfileRepo()
		profileRepo.getByUserIDFn = func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{ID: 1, UserID: userID, Username: "mixer", PicturePath: "profiles/pictures/old.png"}, nil
		}
		profileRepo.updateFn = func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		}

		svc := newProfileService(env, profileRepo, nil)
		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Picture:  imageUpload(),
		})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.NotEmpty(t, saved.PicturePath)
		assert.NotEqual(t, "profiles/pictures/old.png", saved.PicturePath)
		assert.Equal(t, models.ModerationApproved, saved.ModerationStatus)
		assert.True(t, env.store.Has(saved.PicturePath), "new blob must be stored")
		assert.False(t, env.store.Has("profiles/pictures/old.png"), "old blob must be deleted")
	})

	t.Run("rejected picture is stored but marked rejected", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		var saved *models.Profile
		profileRepo := noopProfileRepo()
		profileRepo.updateFn = func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		}

		svc := newProfileService(env, profileRepo, rejectingScanner("Explicit Nudity", 90))
		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Picture:  imageUpload(),
		})
		require.NoError(t, err, "a rejected picture is not a request error")

		require.NotNil(t, saved)
		assert.Equal(t, models.ModerationRejected, saved.ModerationStatus)
		assert.True(t, env.store.Has(saved.PicturePath))
	})

	t.Run("failed scan leaves picture pending", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		var saved *models.Profile
		profileRepo := noopProfileRepo()
		profileRepo.updateFn = func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		}

		svc := newProfileService(env, profileRepo, failingScanner())
		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Picture:  imageUpload(),
		})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Equal(t, models.ModerationPending, saved.ModerationStatus)
		assert.Nil(t, saved.ModerationLabels)
	})

	t.Run("remove clears state and deletes blob", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/old.png", []byte("old"), "image/png"))

		var saved *models.Profile
		profileRepo := noopProfileRepo()
		profileRepo.getByUserIDFn = func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{
				ID: 1, UserID: userID, Username: "mixer",
				PicturePath: "profiles/pictures/old.png",
				ModeratedAsset: models.ModeratedAsset{
					ModerationStatus: models.ModerationApproved,
					ModerationLabels: models.ModerationLabels{},
				},
			}, nil
		}
		profileRepo.updateFn = func(_ context.Context, p *models.Profile) error {
			saved = p
			return nil
		}

		svc := newProfileService(env, profileRepo, nil)
		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Picture:  upload.Remove{},
		})
		require.NoError(t, err)

		require.NotNil(t, saved)
		assert.Empty(t, saved.PicturePath)
		assert.Equal(t, models.ModerationPending, saved.ModerationStatus)
		assert.Nil(t, saved.ModerationLabels)
		assert.False(t, env.store.Has("profiles/pictures/old.png"))
	})

	t.Run("persist failure deletes the new blob and keeps the old", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/old.png", []byte("old"), "image/png"))

		profileRepo := noopProfileRepo()
		profileRepo.getByUserIDFn = func(_ context.Context, userID uint) (*models.Profile, error) {
			return &models.Profile{ID: 1, UserID: userID, Username: "mixer", PicturePath: "profiles/pictures/old.png"}, nil
		}
		profileRepo.updateFn = func(_ context.Context, _ *models.Profile) error {
			return models.NewInternalError(errors.New("db down"))
		}

		svc := newProfileService(env, profileRepo, nil)
		_, err := svc.Update(ctx, UpdateProfileInput{
			UserID:   1,
			Username: "mixer",
			Picture:  imageUpload(),
		})
		require.Error(t, err)

		assert.True(t, env.store.Has("profiles/pictures/old.png"), "old blob survives a failed save")
		// Nothing but the old blob remains.
		assert.Len(t, env.store.Deleted, 1)
	})
}

func TestProfileService_PictureURLGating(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	makeRepo := func(status models.ModerationStatus) *profileRepoStub {
		repo := noopProfileRepo()
		repo.getByUsernameFn = func(_ context.Context, username string) (*models.Profile, error) {
			return &models.Profile{
				ID: 1, UserID: 1, Username: username,
				PicturePath:    "profiles/pictures/p.png",
				ModeratedAsset: models.ModeratedAsset{ModerationStatus: status},
			}, nil
		}
		return repo
	}

	t.Run("approved picture visible to anyone", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/p.png", []byte("p"), "image/png"))
		svc := newProfileService(env, makeRepo(models.ModerationApproved), nil)

		resp, err := svc.GetByUsername(ctx, "mixer", 99)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.PictureURL)
	})

	t.Run("pending picture hidden from others, visible to owner", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/p.png", []byte("p"), "image/png"))
		svc := newProfileService(env, makeRepo(models.ModerationPending), nil)

		other, err := svc.GetByUsername(ctx, "mixer", 99)
		require.NoError(t, err)
		assert.Empty(t, other.PictureURL)

		owner, err := svc.GetByUsername(ctx, "mixer", 1)
		require.NoError(t, err)
		assert.NotEmpty(t, owner.PictureURL)
		assert.Equal(t, models.ModerationPending, owner.ModerationStatus)
	})

	t.Run("rejected picture hidden from others", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		require.NoError(t, env.store.Put(ctx, "profiles/pictures/p.png", []byte("p"), "image/png"))
		svc := newProfileService(env, makeRepo(models.ModerationRejected), nil)

		resp, err := svc.GetByUsername(ctx, "mixer", 99)
		require.NoError(t, err)
		assert.Empty(t, resp.PictureURL)
	})
}
