// Command main runs the database seeder for modmixx.
package main

import (
	"flag"
	"log"

	"modmixx/internal/config"
	"modmixx/internal/database"
	"modmixx/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numTracks := flag.Int("tracks", 80, "Number of tracks to create")
	numComments := flag.Int("comments", 200, "Number of comments to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d tracks, %d comments, clean=%v\n",
		*numUsers, *numTracks, *numComments, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := seed.Seed(db, seed.Options{
		NumUsers:    *numUsers,
		NumTracks:   *numTracks,
		NumComments: *numComments,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
