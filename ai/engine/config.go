package engine

import (
	"fmt"

	"github.com/hrygo/salesense/ai/configloader"
)

// Source cites where a persuasion principle comes from.
type Source struct {
	Author  string `yaml:"author" json:"author"`
	Book    string `yaml:"book" json:"book"`
	Chapter string `yaml:"chapter" json:"chapter,omitempty"`
	Page    string `yaml:"page" json:"page,omitempty"`
}

// Principle is one persuasion principle from the rule tables.
type Principle struct {
	ID           string `yaml:"principle_id" json:"principle_id"`
	Name         string `yaml:"name" json:"name"`
	Definition   string `yaml:"definition" json:"definition"`
	Mechanism    string `yaml:"mechanism" json:"mechanism"`
	Intervention string `yaml:"intervention" json:"intervention"`
	Source       Source `yaml:"source" json:"source"`
}

// Situation is one recognizable customer situation with its verbal signals.
type Situation struct {
	Key         string   `yaml:"key" json:"key"`
	Description string   `yaml:"description" json:"description"`
	Signals     []string `yaml:"signals" json:"signals"`
}

// SelectorRule maps a situation plus context conditions to a principle.
type SelectorRule struct {
	Situation          string   `yaml:"situation"`
	WhenContextHas     []string `yaml:"when_context_has"`
	WhenContextMissing []string `yaml:"when_context_missing"`
	Use                string   `yaml:"use"`
	Note               string   `yaml:"note"`
}

// SelectorConfig is the full rule table plus fallback principle ids.
type SelectorConfig struct {
	Rules    []SelectorRule    `yaml:"rules"`
	Fallback map[string]string `yaml:"fallback"`
}

// SlotSpec describes one extractable slot.
type SlotSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	ListenFor   []string `yaml:"listen_for"`
}

// CaptureSchema lists the slots the capture engine extracts, in prompt order.
type CaptureSchema struct {
	Slots []SlotSpec `yaml:"slots"`
}

type principlesFile struct {
	Principles []Principle `yaml:"principles"`
}

type situationsFile struct {
	Situations []Situation `yaml:"situations"`
}

type selectorFile struct {
	Selector SelectorConfig `yaml:"principle_selector"`
}

type captureFile struct {
	CaptureSchema CaptureSchema `yaml:"capture_schema"`
}

// RuleSet aggregates all rule tables the engine needs, indexed for lookup
// while keeping file order for prompt building.
type RuleSet struct {
	Principles    map[string]Principle
	Situations    map[string]Situation
	SituationKeys []string
	SlotNames     []string
	Selector      SelectorConfig
	Capture       CaptureSchema
}

// LoadRuleSet reads all rule tables from configDir.
func LoadRuleSet(configDir string) (*RuleSet, error) {
	loader := configloader.NewLoader(configDir)

	var principles principlesFile
	if err := loader.Load("principles.yaml", &principles); err != nil {
		return nil, err
	}

	var situations situationsFile
	if err := loader.Load("situations.yaml", &situations); err != nil {
		return nil, err
	}

	var selector selectorFile
	if err := loader.Load("selector.yaml", &selector); err != nil {
		return nil, err
	}

	var capture captureFile
	if err := loader.Load("capture.yaml", &capture); err != nil {
		return nil, err
	}

	rs := &RuleSet{
		Principles: make(map[string]Principle, len(principles.Principles)),
		Situations: make(map[string]Situation, len(situations.Situations)),
		Selector:   selector.Selector,
		Capture:    capture.CaptureSchema,
	}

	for _, p := range principles.Principles {
		if p.ID == "" {
			return nil, fmt.Errorf("principle without principle_id: %q", p.Name)
		}
		rs.Principles[p.ID] = p
	}
	if len(rs.Principles) == 0 {
		return nil, fmt.Errorf("no principles defined in %s", configDir)
	}

	for _, s := range situations.Situations {
		if s.Key == "" {
			return nil, fmt.Errorf("situation without key: %q", s.Description)
		}
		rs.Situations[s.Key] = s
		rs.SituationKeys = append(rs.SituationKeys, s.Key)
	}
	if len(rs.Situations) == 0 {
		return nil, fmt.Errorf("no situations defined in %s", configDir)
	}

	if rs.Selector.Fallback["default"] == "" {
		return nil, fmt.Errorf("selector fallback.default is required")
	}
	if _, ok := rs.Principles[rs.Selector.Fallback["default"]]; !ok {
		return nil, fmt.Errorf("selector fallback.default references unknown principle %q", rs.Selector.Fallback["default"])
	}

	for _, slot := range rs.Capture.Slots {
		if slot.Name == "" {
			return nil, fmt.Errorf("capture slot without name: %q", slot.Description)
		}
		rs.SlotNames = append(rs.SlotNames, slot.Name)
	}
	if len(rs.SlotNames) == 0 {
		return nil, fmt.Errorf("no capture slots defined in %s", configDir)
	}

	return rs, nil
}
