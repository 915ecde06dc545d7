package seed

import (
	"fmt"
	"log"

	"modmixx/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumTracks   int
	NumComments int
	ShouldClean bool
}

// Seed populates the database with demo users, tracks and comment threads.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users, %d tracks, %d comments...",
		opts.NumUsers, opts.NumTracks, opts.NumComments)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	factory := NewFactory(db)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			return fmt.Errorf("failed to create users: %w", err)
		}
		users = append(users, user)
	}
	log.Printf("✓ %d users created", len(users))

	if len(users) == 0 {
		log.Println("🎉 Database seeding completed (no users requested)")
		return nil
	}

	tracks := make([]*models.Track, 0, opts.NumTracks)
	for i := 0; i < opts.NumTracks; i++ {
		owner := users[factory.rng.Intn(len(users))]
		track, err := factory.CreateTrack(owner)
		if err != nil {
			return fmt.Errorf("failed to create tracks: %w", err)
		}
		tracks = append(tracks, track)
	}
	log.Printf("✓ %d tracks created", len(tracks))

	if len(tracks) > 0 {
		created := 0
		var lastRoot *models.Comment
		for created < opts.NumComments {
			commenter := users[factory.rng.Intn(len(users))]
			track := tracks[factory.rng.Intn(len(tracks))]

			// Roughly a third of comments reply to the previous root comment,
			// producing shallow threads like a real comment section.
			var parent *models.Comment
			if lastRoot != nil && factory.rng.Intn(3) == 0 {
				parent = lastRoot
				track = &models.Track{ID: lastRoot.TrackID}
			}

			comment, err := factory.CreateComment(commenter, track, parent)
			if err != nil {
				return fmt.Errorf("failed to create comments: %w", err)
			}
			if parent == nil {
				lastRoot = comment
			}
			created++
		}
		log.Printf("✓ %d comments created", created)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// clearData wipes seeded content in dependency order.
func clearData(db *gorm.DB) error {
	for _, deletion := range []struct {
		name  string
		query *gorm.DB
	}{
		{"comments", db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Comment{})},
		{"tracks", db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Track{})},
		{"profiles", db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Profile{})},
		{"users", db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.User{})},
	} {
		if deletion.query.Error != nil {
			return fmt.Errorf("clear %s: %w", deletion.name, deletion.query.Error)
		}
	}
	return nil
}
