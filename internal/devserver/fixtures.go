package devserver

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/cotgame/internal/model"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixture is a question as the dev server knows it, including the parts
// the public catalog never exposes.
type Fixture struct {
	ID        int64     `yaml:"id"`
	Level     int       `yaml:"level"`
	Tags      []string  `yaml:"tags"`
	Statement string    `yaml:"statement"`
	Answer    float64   `yaml:"answer"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Public strips the statement and answer.
func (f Fixture) Public() model.Question {
	return model.Question{
		ID:        f.ID,
		Level:     f.Level,
		Tags:      f.Tags,
		CreatedAt: f.CreatedAt,
	}
}

type fixtureFile struct {
	Questions []Fixture `yaml:"questions"`
}

// LoadFixtures reads fixtures from path, or the built-in set when path is empty.
func LoadFixtures(path string) ([]Fixture, error) {
	if path == "" {
		return ParseFixtures(defaultFixtures)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	fixtures, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixtures, nil
}

// ParseFixtures decodes a YAML fixture document. Questions are returned
// sorted by id; ids must be positive and unique.
func ParseFixtures(data []byte) ([]Fixture, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	seen := make(map[int64]bool, len(file.Questions))
	for i, f := range file.Questions {
		if f.ID <= 0 {
			return nil, fmt.Errorf("question %d: id must be positive", i)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("question %d: duplicate id %d", i, f.ID)
		}
		seen[f.ID] = true
	}
	sort.Slice(file.Questions, func(i, j int) bool {
		return file.Questions[i].ID < file.Questions[j].ID
	})
	return file.Questions, nil
}
