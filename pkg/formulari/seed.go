package formulari

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadSeed reads a JSON array of formulari, as exported from the records
// table, for the memory store driver.
func LoadSeed(path string) ([]Formulario, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var recs []Formulario
	if err := json.Unmarshal(content, &recs); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for i := range recs {
		recs[i] = recs[i].Normalize()
	}
	return recs, nil
}
