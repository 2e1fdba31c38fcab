package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/robotcrusher/game/engine"
	"github.com/wricardo/mcp-training/robotcrusher/game/service"
)

var (
	ErrRulesNotFound = errors.New("rules not found")
	ErrInvalidRules  = errors.New("invalid rules")
)

// ruleExtensions lists the file formats the manager reads, in lookup order
var ruleExtensions = []string{".json", ".yaml", ".yml"}

// Manager handles rule set loading and caching
type Manager struct {
	rulesDir     string
	defaultRules *engine.Rules
	rules        map[string]*engine.Rules
	mu           sync.RWMutex
}

// NewManager creates a new rules manager, creating rulesDir when it does not exist
func NewManager(rulesDir string) (*Manager, error) {
	if err := os.MkdirAll(rulesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create rules directory: %w", err)
	}

	m := &Manager{
		rulesDir: rulesDir,
		rules:    make(map[string]*engine.Rules),
	}

	m.loadDefaultRules()
	return m, nil
}

// LoadRules loads a rule set by name. The built-in rules answer to "classic"
// when no file overrides them.
func (m *Manager) LoadRules(name string) (*engine.Rules, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulesNotFound, err)
	}

	m.mu.RLock()
	// Check cache first
	if rules, exists := m.rules[name]; exists {
		m.mu.RUnlock()
		return rules, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if rules, exists := m.rules[name]; exists {
		return rules, nil
	}

	path, ok := m.findFile(name)
	if !ok {
		if name == engine.DefaultRules().Name {
			rules := engine.DefaultRules()
			m.rules[name] = rules
			return rules, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrRulesNotFound, name)
	}

	rules, err := engine.LoadRules(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRulesNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	m.rules[name] = rules
	return rules, nil
}

// ListRules returns information about every available rule set, sorted by id
func (m *Manager) ListRules() ([]*service.RulesInfo, error) {
	entries, err := os.ReadDir(m.rulesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules directory: %w", err)
	}

	seen := make(map[string]bool)
	var infos []*service.RulesInfo

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !isRulesExt(ext) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ext)
		if seen[id] {
			continue
		}

		rules, err := m.LoadRules(id)
		if err != nil {
			// Skip invalid rule files
			log.WithError(err).WithField("file", entry.Name()).Warn("skipping rules file")
			continue
		}

		seen[id] = true
		infos = append(infos, infoFor(entry.Name(), id, rules))
	}

	// The built-in rules are always available
	builtin := engine.DefaultRules()
	if !seen[builtin.Name] {
		infos = append(infos, infoFor("", builtin.Name, builtin))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].RulesID < infos[j].RulesID })
	return infos, nil
}

// GetDefault returns the default rule set
func (m *Manager) GetDefault() *engine.Rules {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultRules
}

// SetDefault sets the default rule set by name
func (m *Manager) SetDefault(name string) error {
	rules, err := m.LoadRules(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultRules = rules
	return nil
}

// RefreshCache drops every cached rule set and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.rules = make(map[string]*engine.Rules)
	m.mu.Unlock()

	m.loadDefaultRules()
}

// SaveRules validates a rule set and writes it to disk. The extension of name selects
// the format; names without one are saved as JSON.
func (m *Manager) SaveRules(name string, rules *engine.Rules) error {
	if err := engine.ValidateRules(rules); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !isRulesExt(ext) {
		ext = ".json"
	}
	id, err := normalizeName(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	data, err := engine.MarshalRules(rules, ext)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	path := filepath.Join(m.rulesDir, id+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}

	m.mu.Lock()
	m.rules[id] = rules
	m.mu.Unlock()

	log.WithField("file", path).Info("rules saved")
	return nil
}

// loadDefaultRules prefers classic from disk, then any valid file, then the built-in rules
func (m *Manager) loadDefaultRules() {
	rules, err := m.LoadRules(engine.DefaultRules().Name)
	if err != nil {
		log.WithError(err).Warn("falling back to built-in rules")
		rules = engine.DefaultRules()
	}

	m.mu.Lock()
	m.defaultRules = rules
	m.mu.Unlock()
}

// findFile must be called with m.mu held
func (m *Manager) findFile(name string) (string, bool) {
	for _, ext := range ruleExtensions {
		path := filepath.Join(m.rulesDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// normalizeName strips a rules extension and rejects names that could leave the rules directory
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if ext := filepath.Ext(name); isRulesExt(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return "", errors.New("empty name")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid name %q", name)
	}
	return name, nil
}

func isRulesExt(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range ruleExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

func infoFor(filename, id string, rules *engine.Rules) *service.RulesInfo {
	return &service.RulesInfo{
		Filename:       filename,
		RulesID:        id,
		Name:           rules.Name,
		Description:    rules.Description,
		MaxWidth:       rules.MaxWidth,
		MaxHeight:      rules.MaxHeight,
		RobotPower:     rules.RobotPower,
		EnemyLifeBonus: rules.EnemyLifeBonus,
	}
}
