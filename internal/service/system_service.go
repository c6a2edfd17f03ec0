package service

import (
	"database/sql"
	"strconv"

	"github.com/taxharvest/engine/internal/database"
	"github.com/taxharvest/engine/internal/model"
)

// Version is the application version. Overridden at build time via
// -ldflags "-X ...".
var Version = "dev"

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion returns application and schema version information.
func (s *SystemService) CheckVersion() (model.VersionInfo, error) {
	dbVersion, err := database.Version(s.db)
	if err != nil {
		return model.VersionInfo{}, err
	}

	return model.VersionInfo{
		AppVersion: Version,
		DbVersion:  strconv.FormatInt(dbVersion, 10),
		Features: map[string]bool{
			"lot_matching":            true,
			"harvest_recommendations": true,
			"price_feed":              true,
		},
	}, nil
}
