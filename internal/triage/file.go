package triage

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFile reads flag rules from a JSON file: an array of Rule objects.
func LoadFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flag rules: %w", err)
	}
	var rules []*Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse flag rules %s: %w", path, err)
	}
	return rules, nil
}
