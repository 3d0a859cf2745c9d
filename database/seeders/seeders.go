package seeders

import (
	"log"
	"time"

	"kindernest_go/database"
	"kindernest_go/models"
	"kindernest_go/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedUsers()
	SeedClassGroups()
	SeedChildren()

	log.Println("Database seeding completed successfully!")
}

// SeedUsers seeds the users table with the initial admin and sample staff/parents
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	// Hash the default password
	hashedPassword, _ := utils.HashPassword("password123")

	users := []models.User{
		{
			BaseModel: models.BaseModel{ID: 1},
			Username:  "admin",
			Password:  hashedPassword,
			Email:     "admin@kindernest.school",
			Phone:     "0812345678",
			Role:      "admin",
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 2},
			Username:  "teacher_nida",
			Password:  hashedPassword,
			Email:     "nida@kindernest.school",
			Phone:     "0891234567",
			Role:      "teacher",
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 3},
			Username:  "teacher_somchai",
			Password:  hashedPassword,
			Email:     "somchai@kindernest.school",
			Phone:     "0891234568",
			Role:      "teacher",
			Status:    "active",
		},
		{
			BaseModel: models.BaseModel{ID: 4},
			Username:  "parent_arthit",
			Password:  hashedPassword,
			Email:     "arthit@example.com",
			Phone:     "0869876543",
			Role:      "parent",
			Status:    "active",
		},
	}

	for _, user := range users {
		if err := database.DB.Create(&user).Error; err != nil {
			log.Printf("Error seeding user %s: %v", user.Username, err)
		}
	}

	log.Println("Users seeded successfully")
}

// SeedClassGroups seeds the class groups and their weekly schedules
func SeedClassGroups() {
	var count int64
	database.DB.Model(&models.ClassGroup{}).Count(&count)
	if count > 0 {
		log.Println("Class groups already seeded, skipping...")
		return
	}

	groups := []models.ClassGroup{
		{
			BaseModel: models.BaseModel{ID: 1},
			Name:      "Sunflower (K1)",
			Room:      "Room 101",
			Capacity:  15,
			Active:    true,
		},
		{
			BaseModel: models.BaseModel{ID: 2},
			Name:      "Rainbow (K2)",
			Room:      "Room 102",
			Capacity:  18,
			Active:    true,
		},
	}

	for _, group := range groups {
		if err := database.DB.Create(&group).Error; err != nil {
			log.Printf("Error seeding class group %s: %v", group.Name, err)
		}
	}

	slots := []models.ClassScheduleSlot{
		{ClassGroupID: 1, Weekday: 1, Subject: "Morning Circle", StartTime: "09:00", EndTime: "09:30", SortOrder: 1},
		{ClassGroupID: 1, Weekday: 1, Subject: "Art & Craft", StartTime: "09:30", EndTime: "10:30", SortOrder: 2},
		{ClassGroupID: 1, Weekday: 3, Subject: "Outdoor Play", StartTime: "10:00", EndTime: "11:00", SortOrder: 1},
		{ClassGroupID: 2, Weekday: 2, Subject: "Phonics", StartTime: "09:00", EndTime: "10:00", SortOrder: 1},
		{ClassGroupID: 2, Weekday: 5, Subject: "Music & Movement", StartTime: "10:00", EndTime: "11:00", SortOrder: 1},
	}

	for _, slot := range slots {
		if err := database.DB.Create(&slot).Error; err != nil {
			log.Printf("Error seeding schedule slot for group %d: %v", slot.ClassGroupID, err)
		}
	}

	log.Println("Class groups seeded successfully")
}

// SeedChildren seeds sample children linked to the seeded parent
func SeedChildren() {
	var count int64
	database.DB.Model(&models.Child{}).Count(&count)
	if count > 0 {
		log.Println("Children already seeded, skipping...")
		return
	}

	dob1 := time.Date(2022, 3, 14, 0, 0, 0, 0, time.UTC)
	dob2 := time.Date(2021, 7, 2, 0, 0, 0, 0, time.UTC)

	children := []models.Child{
		{
			BaseModel:    models.BaseModel{ID: 1},
			ParentID:     4,
			ClassGroupID: 1,
			FirstName:    "Mali",
			LastName:     "Srisuk",
			Nickname:     "Nam",
			Gender:       "female",
			DateOfBirth:  &dob1,
			AllergyNote:  "Peanuts",
			Active:       true,
		},
		{
			BaseModel:    models.BaseModel{ID: 2},
			ParentID:     4,
			ClassGroupID: 2,
			FirstName:    "Tawan",
			LastName:     "Srisuk",
			Nickname:     "Sun",
			Gender:       "male",
			DateOfBirth:  &dob2,
			Active:       true,
		},
	}

	for _, child := range children {
		if err := database.DB.Create(&child).Error; err != nil {
			log.Printf("Error seeding child %s: %v", child.FirstName, err)
		}
	}

	log.Println("Children seeded successfully")
}
