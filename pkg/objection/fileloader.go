package objection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// rawEntryFile is the on-disk shape of one theme's objection library,
// authored as JSON under the prompts/grammars directory (§6 persisted
// state layout).
type rawEntryFile struct {
	Entries []RawEntry `json:"entries"`
}

// DirectoryLoader builds a Loader that reads "<root>/<theme>.json",
// matching the teacher's file-backed provider convention: one JSON
// document per theme, named by its id.
func DirectoryLoader(root string) Loader {
	return func(theme string) ([]RawEntry, error) {
		path := filepath.Join(root, theme+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("objection: read theme file %q: %w", path, err)
		}
		var doc rawEntryFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("objection: parse theme file %q: %w", path, err)
		}
		return doc.Entries, nil
	}
}
