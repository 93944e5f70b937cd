package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// policyFile is the on-disk layout of an approval ladder:
//
//	tiers:
//	  - role: manager
//	    threshold: 20
//	  - role: finance
//	    threshold: 50
//	  - role: president
type policyFile struct {
	Tiers []domainwf.Tier `yaml:"tiers"`
}

// LoadPolicyFile reads an approval ladder from YAML. Unknown keys are rejected.
func LoadPolicyFile(path string) ([]domainwf.Tier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML approval ladder
func ParsePolicy(data []byte) ([]domainwf.Tier, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pf policyFile
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := domainwf.ValidateTiers(pf.Tiers); err != nil {
		return nil, err
	}
	return pf.Tiers, nil
}

// BuildPolicy resolves the configured ladder: the policy file if set, then
// inline tiers, then the stock ladder
func (c *Config) BuildPolicy() (*domainwf.Policy, error) {
	tiers := domainwf.DefaultTiers()
	switch {
	case c.Policy.File != "":
		loaded, err := LoadPolicyFile(c.Policy.File)
		if err != nil {
			return nil, err
		}
		tiers = loaded
	case len(c.Policy.Tiers) > 0:
		tiers = c.Policy.Tiers
	}
	return domainwf.NewPolicy(tiers)
}
