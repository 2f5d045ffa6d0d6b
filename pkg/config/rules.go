package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GuardrailRules is the resolved input-guardrail rule set. The two injection
// lists from the file are concatenated into one ordered pattern sequence.
type GuardrailRules struct {
	AllowedTopics     []string
	OffTopicKeywords  []string
	InjectionPatterns []string
}

type ruleFile struct {
	InputGuardrails struct {
		Topics struct {
			Allowed  []string `yaml:"allowed"`
			OffTopic []string `yaml:"off_topic"`
		} `yaml:"topics"`
		Injections struct {
			PromptInjections  []string `yaml:"prompt_injections"`
			JailbreakPatterns []string `yaml:"jailbreak_patterns"`
		} `yaml:"injections"`
	} `yaml:"input_guardrails"`
}

// LoadRules reads the YAML rule-set file and resolves ${ENV_VAR} markers.
// Resolution happens here, before any service starts; the returned rules are
// never mutated afterwards.
func LoadRules(path string) (*GuardrailRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := &GuardrailRules{
		AllowedTopics:    resolveEnvMarkers(file.InputGuardrails.Topics.Allowed),
		OffTopicKeywords: resolveEnvMarkers(file.InputGuardrails.Topics.OffTopic),
		InjectionPatterns: resolveEnvMarkers(append(
			file.InputGuardrails.Injections.PromptInjections,
			file.InputGuardrails.Injections.JailbreakPatterns...,
		)),
	}
	return rules, nil
}

// resolveEnvMarkers replaces values of the form ${NAME} with the value of the
// environment variable NAME. Entries that resolve to nothing are dropped.
func resolveEnvMarkers(values []string) []string {
	resolved := make([]string, 0, len(values))
	for _, v := range values {
		if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
			v = os.Getenv(v[2 : len(v)-1])
		}
		if v == "" {
			continue
		}
		resolved = append(resolved, v)
	}
	return resolved
}
