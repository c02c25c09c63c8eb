package detect

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"phiguard/core"
)

// ruleFile is the on-disk YAML layout for rule imports.
type ruleFile struct {
	Rules []core.AnomalyRule `yaml:"rules"`
}

// maxRuleFileSize bounds rule file parsing.
const maxRuleFileSize = 1024 * 1024

// LoadRulesFromFile parses detection rules from a YAML file. Invalid rules
// are skipped with a logged error so one bad entry does not block the rest.
func LoadRulesFromFile(path string, logger *zap.SugaredLogger) ([]core.AnomalyRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	if len(data) > maxRuleFileSize {
		return nil, fmt.Errorf("rules file %s exceeds maximum size of %d bytes", path, maxRuleFileSize)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	valid := make([]core.AnomalyRule, 0, len(rf.Rules))
	for i := range rf.Rules {
		rule := rf.Rules[i]
		if err := rule.Validate(); err != nil {
			logger.Errorw("Invalid rule in file, skipping", "file", path, "rule_id", rule.ID, "error", err)
			continue
		}
		valid = append(valid, rule)
	}
	return valid, nil
}

// ImportRules loads rules from a YAML file and adds them to the store,
// overwriting rules with matching IDs. Returns the number imported.
func ImportRules(ctx context.Context, rs *RuleStore, path string, logger *zap.SugaredLogger) (int, error) {
	rules, err := LoadRulesFromFile(path, logger)
	if err != nil {
		return 0, err
	}
	imported := 0
	for _, rule := range rules {
		if err := rs.Add(ctx, rule); err != nil {
			logger.Errorw("Failed to import rule", "rule_id", rule.ID, "error", err)
			continue
		}
		imported++
	}
	return imported, nil
}
