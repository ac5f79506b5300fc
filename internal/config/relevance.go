package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RelevanceProfile adds keyword points on top of a post's engagement score.
type RelevanceProfile struct {
	Weights Weights `yaml:"weights"`
	Rules   []Rule  `yaml:"rules"`
}

type Weights struct {
	HighSignal map[string]float64 `yaml:"high_signal"`
	LowSignal  map[string]float64 `yaml:"low_signal"`
}

type Rule struct {
	If   RuleCondition `yaml:"if"`
	Then RuleAction    `yaml:"then"`
}

type RuleCondition struct {
	ContainsAny []string `yaml:"contains_any"`
}

type RuleAction struct {
	ScoreAdd float64 `yaml:"score_add"`
}

// LoadRelevance reads a relevance profile YAML file and validates it.
func LoadRelevance(path string) (*RelevanceProfile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("relevance profile path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relevance profile: %w", err)
	}

	var rp RelevanceProfile
	if err := yaml.Unmarshal(data, &rp); err != nil {
		return nil, fmt.Errorf("parse relevance profile: %w", err)
	}

	if err := validateRelevance(&rp); err != nil {
		return nil, fmt.Errorf("validate relevance profile: %w", err)
	}

	return &rp, nil
}

func validateRelevance(rp *RelevanceProfile) error {
	for i, r := range rp.Rules {
		if len(r.If.ContainsAny) == 0 {
			return fmt.Errorf("rules[%d]: contains_any must not be empty", i)
		}
		if r.Then.ScoreAdd == 0 {
			return fmt.Errorf("rules[%d]: score_add must not be zero", i)
		}
	}
	for kw, w := range rp.Weights.HighSignal {
		if w <= 0 {
			return fmt.Errorf("weights.high_signal[%q]: weight %v must be positive", kw, w)
		}
	}
	for kw, w := range rp.Weights.LowSignal {
		if w >= 0 {
			return fmt.Errorf("weights.low_signal[%q]: weight %v must be negative", kw, w)
		}
	}
	return nil
}
