package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules tunes map generation, the power economy and the match timers
type Rules struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`

	// Grid sizing: dimensions are drawn up to the maxima until the cell count exceeds MinVolume
	MinVolume int `json:"min_volume" yaml:"min_volume"`
	MaxWidth  int `json:"max_width" yaml:"max_width"`
	MaxHeight int `json:"max_height" yaml:"max_height"`

	// Wall count is drawn between MinWalls and max(MinWalls, round(cells*WallRatio))
	MinWalls  int     `json:"min_walls" yaml:"min_walls"`
	WallRatio float64 `json:"wall_ratio" yaml:"wall_ratio"`

	RobotPower     int `json:"robot_power" yaml:"robot_power"`
	EnemyLifeBonus int `json:"enemy_life_bonus" yaml:"enemy_life_bonus"`
	RetryLimit     int `json:"retry_limit" yaml:"retry_limit"`

	CountdownCueMillis     int `json:"countdown_cue_ms" yaml:"countdown_cue_ms"`
	DestroyedRegenMillis   int `json:"destroyed_regen_ms" yaml:"destroyed_regen_ms"`
	CrushedRegenMillis     int `json:"crushed_regen_ms" yaml:"crushed_regen_ms"`
	PushStaggerMillis      int `json:"push_stagger_ms" yaml:"push_stagger_ms"`
	IntroPressureThreshold int `json:"intro_pressure_threshold" yaml:"intro_pressure_threshold"`
}

// DefaultRules returns the standard rule set
func DefaultRules() *Rules {
	return &Rules{
		Name:                   "classic",
		Description:            "Ten by ten arena, one crusher, enemies growing stronger with every kill",
		MinVolume:              10,
		MaxWidth:               10,
		MaxHeight:              10,
		MinWalls:               3,
		WallRatio:              0.2,
		RobotPower:             DefaultRobotPower,
		EnemyLifeBonus:         DefaultEnemyLifeBonus,
		RetryLimit:             DefaultRetryLimit,
		CountdownCueMillis:     1000,
		DestroyedRegenMillis:   4700,
		CrushedRegenMillis:     1000,
		PushStaggerMillis:      50,
		IntroPressureThreshold: 100,
	}
}

// CountdownCueDelay is the wait between an enemy kill and the countdown cue
func (r *Rules) CountdownCueDelay() time.Duration {
	return time.Duration(r.CountdownCueMillis) * time.Millisecond
}

// DestroyedRegenDelay is the wait between an enemy running out of power and the next level
func (r *Rules) DestroyedRegenDelay() time.Duration {
	return time.Duration(r.DestroyedRegenMillis) * time.Millisecond
}

// CrushedRegenDelay is the wait between an enemy being crushed and the next level
func (r *Rules) CrushedRegenDelay() time.Duration {
	return time.Duration(r.CrushedRegenMillis) * time.Millisecond
}

// PushStagger delays the pushed robot's animation behind the pusher's
func (r *Rules) PushStagger() time.Duration {
	return time.Duration(r.PushStaggerMillis) * time.Millisecond
}

// MaxWalls returns the upper bound of the wall count for a grid of cellCount cells
func (r *Rules) MaxWalls(cellCount int) int {
	return max(r.MinWalls, int(float64(cellCount)*r.WallRatio+0.5))
}

// ValidateRules checks a rule set for values that would make generation impossible
func ValidateRules(rules *Rules) error {
	if rules == nil {
		return fmt.Errorf("rules validation: rules are required")
	}
	if rules.Name == "" {
		return fmt.Errorf("rules validation: name is required")
	}

	// Validate grid sizing
	if rules.MaxWidth < MinGridSide || rules.MaxWidth > MaxGridSide {
		return fmt.Errorf("rules validation: max_width must be between %d and %d, got %d", MinGridSide, MaxGridSide, rules.MaxWidth)
	}
	if rules.MaxHeight < MinGridSide || rules.MaxHeight > MaxGridSide {
		return fmt.Errorf("rules validation: max_height must be between %d and %d, got %d", MinGridSide, MaxGridSide, rules.MaxHeight)
	}
	if rules.MinVolume < 0 || rules.MinVolume >= rules.MaxWidth*rules.MaxHeight {
		return fmt.Errorf("rules validation: min_volume must be between 0 and %d, got %d", rules.MaxWidth*rules.MaxHeight-1, rules.MinVolume)
	}

	// Validate walls: the smallest possible grid must still fit the crusher and two robots
	if rules.MinWalls < 0 {
		return fmt.Errorf("rules validation: min_walls cannot be negative, got %d", rules.MinWalls)
	}
	if rules.WallRatio < 0 || rules.WallRatio > 0.5 {
		return fmt.Errorf("rules validation: wall_ratio must be between 0 and 0.5, got %g", rules.WallRatio)
	}
	smallest := MinGridSide * MinGridSide
	if rules.MinVolume >= smallest {
		smallest = rules.MinVolume + 1
	}
	if rules.MaxWalls(smallest)+3 > smallest {
		return fmt.Errorf("rules validation: walls leave no room for the crusher and robots on a %d cell grid", smallest)
	}

	// Validate power
	if rules.RobotPower <= 0 {
		return fmt.Errorf("rules validation: robot_power must be positive, got %d", rules.RobotPower)
	}
	if rules.RobotPower+rules.EnemyLifeBonus <= 0 {
		return fmt.Errorf("rules validation: robot_power + enemy_life_bonus must be positive, got %d", rules.RobotPower+rules.EnemyLifeBonus)
	}
	if rules.RetryLimit <= 0 {
		return fmt.Errorf("rules validation: retry_limit must be positive, got %d", rules.RetryLimit)
	}

	// Validate timers
	for name, value := range map[string]int{
		"countdown_cue_ms":   rules.CountdownCueMillis,
		"destroyed_regen_ms": rules.DestroyedRegenMillis,
		"crushed_regen_ms":   rules.CrushedRegenMillis,
		"push_stagger_ms":    rules.PushStaggerMillis,
	} {
		if value < 0 {
			return fmt.Errorf("rules validation: %s cannot be negative, got %d", name, value)
		}
	}
	if rules.IntroPressureThreshold <= 0 {
		return fmt.Errorf("rules validation: intro_pressure_threshold must be positive, got %d", rules.IntroPressureThreshold)
	}

	return nil
}

// LoadRules reads a rule set from a .json, .yaml or .yml file and validates it
func LoadRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := ParseRules(data, filepath.Ext(filename))
	if err != nil {
		return nil, err
	}
	if rules.Name == "" {
		rules.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	if err := ValidateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// ParseRules decodes a rule set on top of the defaults. ext selects the format.
func ParseRules(data []byte, ext string) (*Rules, error) {
	rules := DefaultRules()
	rules.Name = ""
	rules.Description = ""

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, rules); err != nil {
			return nil, fmt.Errorf("failed to parse rules JSON: %w", err)
		}
	}
	return rules, nil
}

// MarshalRules encodes a rule set in the format selected by ext
func MarshalRules(rules *Rules, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Marshal(rules)
	default:
		return json.MarshalIndent(rules, "", "  ")
	}
}
