package shell

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed mockdata.yaml
var mockYAML []byte

// Table is a static page body.
type Table struct {
	Title   string     `yaml:"title"`
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows"`
}

var (
	mockOnce  sync.Once
	mockData  map[string]Table
	mockError error
)

// MockTable returns the sample table for a static page.
func MockTable(path string) (Table, error) {
	mockOnce.Do(func() {
		mockData, mockError = parseMockData(mockYAML)
	})
	if mockError != nil {
		return Table{}, mockError
	}

	t, ok := mockData[normalize(path)]
	if !ok {
		return Table{}, fmt.Errorf("no sample data for %s", path)
	}
	return t, nil
}

func parseMockData(b []byte) (map[string]Table, error) {
	out := make(map[string]Table)
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to parse sample data: %w", err)
	}
	for path, t := range out {
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return nil, fmt.Errorf("%s row %d: got %d cells, want %d", path, i, len(row), len(t.Columns))
			}
		}
	}
	return out, nil
}
