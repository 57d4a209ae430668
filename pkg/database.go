package salvator

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	"gonum.org/v1/gonum/spatial/r3"
)

func ConnectToDatabase(user string, pass string, host string, dbname string) (*sqlx.DB, error) {
	port := "3306"
	dbURI := fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

// CrystalPositionEntry is one row of the CrystalPositions table.
type CrystalPositionEntry struct {
	CrystalID int     `db:"CrystalID"`
	X         float64 `db:"X"`
	Y         float64 `db:"Y"`
	Z         float64 `db:"Z"`
	Gain      float64 `db:"Gain"`
	Offset    float64 `db:"Offset"`
}

const crystalPositionsQuery = "SELECT CrystalID, X, Y, Z, Gain, Offset FROM CrystalPositions " +
	"WHERE MinRun <= ? and MaxRun >= ? ORDER BY CrystalID"

// LoadCrystalTable reads the crystal positions valid for runNumber.
func LoadCrystalTable(db *sqlx.DB, runNumber int, nCrystals int) (*CrystalTable, error) {
	logger.Info(fmt.Sprintf("Reading crystal positions for run %d from database", runNumber), "database")

	entries := []CrystalPositionEntry{}
	rows, err := db.Queryx(crystalPositionsQuery, runNumber, runNumber)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		result := CrystalPositionEntry{}
		if err := rows.StructScan(&result); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		entries = append(entries, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading DB rows: %w", err)
	}
	return crystalTableFromEntries(entries, nCrystals)
}

func crystalTableFromEntries(entries []CrystalPositionEntry, nCrystals int) (*CrystalTable, error) {
	table := NewCrystalTable(nCrystals)
	for _, e := range entries {
		crystal := Crystal{
			ID:     e.CrystalID,
			Pos:    r3.Vec{X: e.X, Y: e.Y, Z: e.Z},
			Gain:   e.Gain,
			Offset: e.Offset,
		}
		// Old runs were stored without calibration.
		if crystal.Gain == 0 {
			crystal.Gain = 1
		}
		if err := table.Set(crystal); err != nil {
			return nil, fmt.Errorf("error loading crystal positions: %w", err)
		}
	}
	return table, nil
}

// LoadPositions resolves the crystal table of a run: from the position file
// when one is configured, from the database otherwise.
func LoadPositions(config Configuration) (*CrystalTable, error) {
	n := config.Reconstruction.NCrystals
	if config.PositionFile != "" {
		logger.Info(fmt.Sprintf("Reading crystal positions from %s", config.PositionFile), "positions")
		return ReadPositionsFile(config.PositionFile, n)
	}
	if config.NoDB {
		return nil, &ConfigError{Field: "position_file", Reason: "required when no_db is set"}
	}
	dbConn, err := ConnectToDatabase(config.User, config.Passwd, config.Host, config.DBName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer dbConn.Close()
	return LoadCrystalTable(dbConn, config.RunNumber, n)
}
