// Package dsn provides Data Source Name construction and gorm driver
// selection for database connections.
package dsn

import (
	"fmt"

	"github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/config"
)

// Create builds the Data Source Name from the configuration.
func Create(dbCfg *config.Config) string {
	switch dbCfg.DB.GormEngine {
	case "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d %s",
			dbCfg.DB.Host,
			dbCfg.DB.User,
			dbCfg.DB.Password,
			dbCfg.DB.Name,
			dbCfg.DB.Port,
			dbCfg.DB.Extras,
		)
	case "sqlite":
		return dbCfg.DB.Name
	default: // mysql
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			dbCfg.DB.User,
			dbCfg.DB.Password,
			dbCfg.DB.Host,
			dbCfg.DB.Port,
			dbCfg.DB.Name,
			dbCfg.DB.Extras,
		)
	}
}

// Dialector selects the gorm driver matching the configured engine.
func Dialector(dbCfg *config.Config) gorm.Dialector {
	switch dbCfg.DB.GormEngine {
	case "postgres":
		return gormpostgres.Open(Create(dbCfg))
	case "sqlite":
		return sqlite.Open(Create(dbCfg))
	default:
		return gormmysql.Open(Create(dbCfg))
	}
}
