package storage

import (
	"embed"
	"fmt"
)

//go:embed migrations/*.sql
var migrations embed.FS

func migrationSQL(driver string) (string, error) {
	b, err := migrations.ReadFile("migrations/" + driver + ".sql")
	if err != nil {
		return "", fmt.Errorf("error reading migrations file: %v", err)
	}
	return string(b), nil
}
