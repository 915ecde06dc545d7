// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"modmixx/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	genres = []string{
		"lofi", "house", "ambient", "drum and bass", "hip hop", "synthwave",
		"techno", "jazz fusion", "garage", "downtempo", "breakbeat", "dub",
	}

	trackAdjectives = []string{
		"Midnight", "Velvet", "Broken", "Neon", "Slow", "Electric", "Quiet",
		"Golden", "Rainy", "Restless", "Hollow", "Borrowed", "Static",
	}

	trackNouns = []string{
		"Frequencies", "Tape Loop", "Daydream", "Circuit", "Echoes", "Motive",
		"Transmission", "Undertow", "Interlude", "Horizon", "Bloom", "Signal",
	}

	pronounSets = []string{
		"she/her", "he/him", "they/them", "she/they", "he/they", "",
	}

	commentLines = []string{
		"this groove is unreal",
		"the mix on the drums is so clean",
		"what synth is that at the drop?",
		"been looping this all morning",
		"that bassline sits perfectly",
		"love where the bridge goes",
		"the texture in the second half is gorgeous",
		"would love to hear a longer version",
	}
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db *gorm.DB
	// seedPassword is the shared bcrypt hash for every generated account;
	// hashing once keeps large seeds fast.
	seedPassword string
	rng          *rand.Rand
	slugSeq      int
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	hashed, _ := bcrypt.GenerateFromPassword([]byte("SeedPass123!@"), bcrypt.MinCost)
	return &Factory{
		db:           db,
		seedPassword: string(hashed),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateUser constructs and persists a sample user with a populated profile.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := strings.ToLower(gofakeit.Username()) + fmt.Sprintf("%d", gofakeit.Number(100, 999))
	user := &models.User{
		Email:    gofakeit.Email(),
		Password: f.seedPassword,
		Profile: models.Profile{
			Username:    username,
			DisplayName: gofakeit.Name(),
			Bio:         gofakeit.Sentence(12),
			Pronouns:    pronounSets[f.rng.Intn(len(pronounSets))],
		},
	}

	for _, override := range overrides {
		override(user)
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateTrack constructs and persists a sample track for the given user.
// Roughly half the generated tracks carry artwork; artwork status skews
// approved with a spread of pending and rejected so moderation surfaces have
// something to show.
func (f *Factory) CreateTrack(user *models.User, overrides ...func(*models.Track)) (*models.Track, error) {
	title := fmt.Sprintf("%s %s",
		trackAdjectives[f.rng.Intn(len(trackAdjectives))],
		trackNouns[f.rng.Intn(len(trackNouns))])

	// Slugs are unique; a sequence suffix avoids collisions between the
	// small pool of generated titles.
	f.slugSeq++
	track := &models.Track{
		Title:       title,
		Slug:        fmt.Sprintf("%s-%d", slugFromTitle(title), f.slugSeq),
		Description: gofakeit.Paragraph(1, 2, 8, "\n"),
		Tags:        strings.Join(pickGenres(f.rng), ", "),
		AudioPath:   fmt.Sprintf("tracks/audio/%s-%s.mp3", slugFromTitle(title), ulid.Make().String()),
		UserID:      user.ID,
	}
	// A track without artwork has nothing to scan and stays PENDING with no
	// label record.
	track.ModerationStatus = models.ModerationPending

	if f.rng.Intn(2) == 0 {
		track.ImagePath = fmt.Sprintf("tracks/images/cover-%s.jpg", ulid.Make().String())
		now := time.Now().Add(-time.Duration(f.rng.Intn(90*24)) * time.Hour)
		switch f.rng.Intn(10) {
		case 0:
			track.ModerationStatus = models.ModerationRejected
			track.ModerationLabels = models.ModerationLabels{{Name: "Explicit Nudity", Confidence: 96.5}}
			track.ModeratedAt = &now
		case 1:
			track.ModerationStatus = models.ModerationPending
		default:
			track.ModerationStatus = models.ModerationApproved
			track.ModerationLabels = models.ModerationLabels{}
			track.ModeratedAt = &now
		}
	}

	// realistic created_at spread
	track.CreatedAt = time.Now().Add(-time.Duration(f.rng.Intn(120*24)) * time.Hour)

	for _, override := range overrides {
		override(track)
	}

	if err := f.db.Create(track).Error; err != nil {
		return nil, err
	}
	return track, nil
}

// CreateComment constructs and persists a comment, optionally as a reply.
func (f *Factory) CreateComment(user *models.User, track *models.Track, parent *models.Comment, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		Content: commentLines[f.rng.Intn(len(commentLines))],
		UserID:  user.ID,
		TrackID: track.ID,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}

	for _, override := range overrides {
		override(comment)
	}

	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

func pickGenres(rng *rand.Rand) []string {
	count := 1 + rng.Intn(3)
	picked := make([]string, 0, count)
	seen := make(map[string]bool, count)
	for len(picked) < count {
		g := genres[rng.Intn(len(genres))]
		if !seen[g] {
			seen[g] = true
			picked = append(picked, g)
		}
	}
	return picked
}

func slugFromTitle(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
