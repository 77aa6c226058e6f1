package weighting

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/parlayforge/parlayforge/internal/prediction"
)

// PreferenceVector is a per-user preference score per sport.
// Scores are relative; only their ratios matter.
type PreferenceVector map[prediction.Sport]float64

// PreferenceStore holds per-user preference vectors. Mutations are
// serialized; reads may be concurrent.
type PreferenceStore struct {
	mu    sync.RWMutex
	users map[string]PreferenceVector
}

// NewPreferenceStore creates an empty preference store
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{
		users: make(map[string]PreferenceVector),
	}
}

// Set stores a user's preference vector, replacing any previous one
func (s *PreferenceStore) Set(userID string, vector PreferenceVector) error {
	for sport, score := range vector {
		if _, err := prediction.ParseSport(string(sport)); err != nil {
			return err
		}
		if score < 0 {
			return fmt.Errorf("preference score for %s must be non-negative, got %f", sport, score)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(PreferenceVector, len(vector))
	for k, v := range vector {
		copied[k] = v
	}
	s.users[userID] = copied
	return nil
}

// Get returns a user's preference vector
func (s *PreferenceStore) Get(userID string) (PreferenceVector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.users[userID]
	return v, ok
}

// preferenceFile is the on-disk import/export format
type preferenceFile struct {
	Users map[string]map[string]float64 `json:"users" yaml:"users"`
}

// ImportFile loads preference vectors from a YAML or JSON file.
// JSON is tried first, then YAML, matching the file formats users supply.
func (s *PreferenceStore) ImportFile(path string) (int, error) {
	data, err := os.ReadFile(path) // #nosec G304 Path from validated config
	if err != nil {
		return 0, fmt.Errorf("failed to read preference file: %w", err)
	}
	return s.Import(data)
}

// Import loads preference vectors from serialized bytes (JSON or YAML)
func (s *PreferenceStore) Import(data []byte) (int, error) {
	var file preferenceFile
	if jsonErr := json.Unmarshal(data, &file); jsonErr != nil {
		if yamlErr := yaml.Unmarshal(data, &file); yamlErr != nil {
			return 0, fmt.Errorf("preference data is neither valid JSON (%v) nor YAML: %w", jsonErr, yamlErr)
		}
	}

	imported := 0
	for userID, raw := range file.Users {
		vector := make(PreferenceVector, len(raw))
		for sportName, score := range raw {
			sport, err := prediction.ParseSport(sportName)
			if err != nil {
				return imported, fmt.Errorf("user %s: %w", userID, err)
			}
			vector[sport] = score
		}
		if err := s.Set(userID, vector); err != nil {
			return imported, fmt.Errorf("user %s: %w", userID, err)
		}
		imported++
	}

	log.Info().Int("users", imported).Msg("Imported user preference vectors")
	return imported, nil
}

// Export serializes all preference vectors to YAML
func (s *PreferenceStore) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file := preferenceFile{Users: make(map[string]map[string]float64, len(s.users))}
	for userID, vector := range s.users {
		raw := make(map[string]float64, len(vector))
		for sport, score := range vector {
			raw[string(sport)] = score
		}
		file.Users[userID] = raw
	}

	return yaml.Marshal(&file)
}

// UserPreferenceStrategy weights agents by the requesting user's configured
// preference score for each sport. With no preference recorded for the
// user, or nothing but zeros for the participating sports, it falls back
// to the equal strategy.
type UserPreferenceStrategy struct {
	prefs    *PreferenceStore
	fallback *EqualStrategy
}

// ID returns the strategy identifier
func (s *UserPreferenceStrategy) ID() string { return StrategyUserPreference }

// ComputeWeights implements Strategy
func (s *UserPreferenceStrategy) ComputeWeights(preds []prediction.Prediction, ctx Context) (map[string]float64, error) {
	if len(preds) == 0 {
		return nil, prediction.ErrNoAgentResponse
	}
	if w, ok := singleResponder(preds); ok {
		return w, nil
	}

	vector, ok := s.prefs.Get(ctx.UserID)
	if !ok {
		return s.fallback.ComputeWeights(preds, ctx)
	}

	total := 0.0
	for _, p := range preds {
		total += vector[p.Sport]
	}
	if total <= 0 {
		// Preference vector says nothing about the participating sports
		return s.fallback.ComputeWeights(preds, ctx)
	}

	weights := make(map[string]float64, len(preds))
	for _, p := range preds {
		weights[p.AgentID] = vector[p.Sport] / total
	}
	return weights, nil
}
