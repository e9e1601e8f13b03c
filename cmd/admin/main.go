// Package main provides staff management utilities for Quill.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin promote <user_id>                    - Grant staff access")
		fmt.Println("  go run ./cmd/admin demote <user_id>                     - Revoke staff access")
		fmt.Println("  go run ./cmd/admin list-staff                           - List staff accounts")
		fmt.Println("  go run ./cmd/admin create <username> <email> <password> - Create a staff account")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "promote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin promote <user_id>")
			os.Exit(1)
		}
		setStaff(db, os.Args[2], true)

	case "demote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin demote <user_id>")
			os.Exit(1)
		}
		setStaff(db, os.Args[2], false)

	case "list-staff":
		listStaff(db)

	case "create":
		if len(os.Args) < 5 {
			fmt.Println("Usage: go run ./cmd/admin create <username> <email> <password>")
			os.Exit(1)
		}
		createStaff(db, os.Args[2], os.Args[3], os.Args[4])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func setStaff(db *gorm.DB, userID string, staff bool) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if user.IsStaff == staff {
		state := "not"
		if staff {
			state = "already"
		}
		fmt.Printf("User %s (ID: %d) is %s staff\n", user.Username, user.ID, state)
		return
	}

	user.IsStaff = staff
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}

	verb := "revoked staff access from"
	if staff {
		verb = "granted staff access to"
	}
	fmt.Printf("Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
}

func listStaff(db *gorm.DB) {
	var staff []models.User
	if err := db.Where("is_staff = ?", true).Find(&staff).Error; err != nil {
		log.Fatalf("Failed to fetch staff: %v", err)
	}

	if len(staff) == 0 {
		fmt.Println("No staff accounts found")
		return
	}

	fmt.Println("Staff accounts:")
	for _, user := range staff {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", user.ID, user.Username, user.Email)
	}
}

func createStaff(db *gorm.DB, username, email, password string) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := models.User{
		Username: username,
		Email:    email,
		Password: string(hashed),
		IsStaff:  true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create staff account: %v", err)
	}

	fmt.Printf("Created staff account %s (ID: %d)\n", user.Username, user.ID)
}
