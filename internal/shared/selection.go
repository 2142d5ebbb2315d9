package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/badgeidle/internal/models"
)

// LoadSelection reads a JSON array of numeric item ids from path.
//
// A missing file, an empty path or an empty array yields a nil set (no filtering). Malformed content
// returns [ErrSelectionMalformed]; callers log it and continue unfiltered.
func LoadSelection(path string) (*models.SelectionSet, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read selection file: %w", err)
	}

	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSelectionMalformed, path, err)
	}
	if ids == nil {
		return nil, fmt.Errorf("%w: %s: expected a JSON array", ErrSelectionMalformed, path)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	return models.NewSelectionSet(ids...), nil
}
