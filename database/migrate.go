package database

import (
	"github.com/yeremiapane/table-reservations/models"
	"github.com/yeremiapane/table-reservations/utils"
	"gorm.io/gorm"
)

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Location{},
		&models.Table{},
		&models.Host{},
		&models.Client{},
		&models.Reservation{},
		&models.ReservationDetail{},
	)
	if err != nil {
		return err
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}

// Seed inserts a small demo floor when the tables table is empty.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Table{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		hall := models.Location{Name: "Main hall"}
		terrace := models.Location{Name: "Terrace"}
		if err := tx.Create(&[]*models.Location{&hall, &terrace}).Error; err != nil {
			return err
		}

		tables := []models.Table{
			{Number: 1, Capacity: 2, LocationID: &hall.ID},
			{Number: 2, Capacity: 4, LocationID: &hall.ID},
			{Number: 3, Capacity: 6, LocationID: &terrace.ID},
		}
		if err := tx.Create(&tables).Error; err != nil {
			return err
		}

		hosts := []models.Host{
			{Name: "Anna Koval", TableID: tables[0].ID},
			{Name: "Petro Melnyk", TableID: tables[1].ID},
		}
		if err := tx.Create(&hosts).Error; err != nil {
			return err
		}

		clients := []models.Client{
			{Name: "John Doe", Email: "john@example.com", Phone: "+380987345692"},
			{Name: "Jane Roe", Email: "jane@example.com", Phone: "+380501112233"},
		}
		if err := tx.Create(&clients).Error; err != nil {
			return err
		}

		utils.InfoLogger.Printf("Seeded %d tables, %d hosts, %d clients", len(tables), len(hosts), len(clients))
		return nil
	})
}
