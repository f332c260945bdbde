package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Model is the persisted linear mapping from same-day features to next-day close.
type Model struct {
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Rows         int       `json:"rows"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Predict applies the model to one feature vector ordered as m.Features.
func (m *Model) Predict(x []float64) float64 {
	y := m.Intercept
	for i, c := range m.Coefficients {
		y += c * x[i]
	}
	return y
}

// LoadModel reads a model artifact from a JSON file.
func LoadModel(filePath string) (*Model, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Features) == 0 || len(m.Features) != len(m.Coefficients) {
		return nil, fmt.Errorf("artifact has %d features and %d coefficients", len(m.Features), len(m.Coefficients))
	}
	return &m, nil
}

// SaveModel writes the model artifact, replacing any previous one atomically.
func SaveModel(filePath string, m *Model) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filePath, data)
}

func writeFileAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
