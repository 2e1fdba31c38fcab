// Package config manages Robot Crusher rule sets.
//
// A rule set (engine.Rules) controls map sizing, wall density, robot power,
// the starting enemy life bonus and the delays between levels. Rule sets live
// as JSON or YAML files in a rules directory, named by id:
//
//	rules/classic.json
//	rules/tight.yaml
//
// The built-in "classic" rules are always available and are used as the
// default unless a classic file overrides them. Loaded rule sets are cached;
// RefreshCache drops the cache after files change on disk.
//
// Usage:
//
//	manager, err := config.NewManager("rules")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	rules, err := manager.LoadRules("tight")
//	infos, err := manager.ListRules()
//	err = manager.SaveRules("arena.yaml", rules)
package config
