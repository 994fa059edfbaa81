package matching

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Weights are expressed as percentage points and should sum to 100 so the
// final score lands in the 0-100 range.
type Weights struct {
	CareLevel      int `yaml:"careLevel" json:"careLevel"`
	Distance       int `yaml:"distance" json:"distance"`
	Specialization int `yaml:"specialization" json:"specialization"`
	Lifestyle      int `yaml:"lifestyle" json:"lifestyle"`
	Social         int `yaml:"social" json:"social"`
}

func DefaultWeights() Weights {
	return Weights{
		CareLevel:      30,
		Distance:       20,
		Specialization: 20,
		Lifestyle:      20,
		Social:         10,
	}
}

func (w Weights) Total() int {
	return w.CareLevel + w.Distance + w.Specialization + w.Lifestyle + w.Social
}

// LoadWeights reads dimension weights from a YAML file, falling back to the
// defaults when no path is configured.
func LoadWeights(path string) (Weights, error) {
	if path == "" {
		return DefaultWeights(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultWeights(), err
	}

	var w Weights
	if err := yaml.Unmarshal(content, &w); err != nil {
		return Weights{}, err
	}

	if w.Total() <= 0 {
		return Weights{}, errors.New("matching weights must sum to a positive total")
	}

	return w, nil
}
