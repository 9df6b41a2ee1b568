package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

const (
	defaultRulePriority   = 150
	defaultRuleConfidence = 0.9
)

type ruleConfig struct {
	Name       string  `mapstructure:"name"`
	Category   string  `mapstructure:"category"`
	Regex      string  `mapstructure:"regex"`
	Exclude    string  `mapstructure:"exclude"`
	Priority   int     `mapstructure:"priority"`
	Confidence float64 `mapstructure:"confidence"`
}

// LoadKeywordRules reads user keyword rules from patterns.rules. They are
// checked before the built-in rules unless a lower priority is given.
//
//	patterns:
//	  rules:
//	    - name: corkage
//	      category: service_charge
//	      regex: '\bcorkage\b'
func LoadKeywordRules(v *viper.Viper) ([]classification.KeywordRule, error) {
	var raw []ruleConfig
	if err := v.UnmarshalKey("patterns.rules", &raw); err != nil {
		return nil, fmt.Errorf("%w: patterns.rules: %w", common.ErrInvalidConfig, err)
	}

	rules := make([]classification.KeywordRule, 0, len(raw))
	for i, r := range raw {
		if r.Regex == "" {
			return nil, fmt.Errorf("%w: patterns.rules[%d] has no regex", common.ErrInvalidConfig, i)
		}
		category, err := model.ParseItemCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("%w: patterns.rules[%d]: %w", common.ErrInvalidConfig, i, err)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return nil, fmt.Errorf("%w: patterns.rules[%d] confidence must be in [0, 1]", common.ErrInvalidConfig, i)
		}

		rule := classification.KeywordRule{
			Name:       r.Name,
			Category:   category,
			Regex:      r.Regex,
			Exclude:    r.Exclude,
			Priority:   r.Priority,
			Confidence: r.Confidence,
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("custom %d", i+1)
		}
		if rule.Priority == 0 {
			rule.Priority = defaultRulePriority
		}
		if rule.Confidence == 0 {
			rule.Confidence = defaultRuleConfidence
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// PatternStrategy builds the pattern strategy with the built-in rules plus
// any configured ones. It returns nil when no rules are configured.
func PatternStrategy(v *viper.Viper) (*classification.PatternStrategy, error) {
	custom, err := LoadKeywordRules(v)
	if err != nil || len(custom) == 0 {
		return nil, err
	}
	strategy, err := classification.NewPatternStrategyWithRules(append(classification.DefaultKeywordRules(), custom...))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	return strategy, nil
}
