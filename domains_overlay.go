package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DomainOverlay lets deployments extend the built-in domain catalog from a
// YAML file without a rebuild. An overlay domain matching a built-in name
// merges into it; a new name adds a domain.
type DomainOverlay struct {
	Domains []OverlayDomain `yaml:"domains"`
}

type OverlayDomain struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight"`
	Replace  bool     `yaml:"replace"` // drop built-in keywords instead of merging
}

func LoadDomainOverlay(path string) (*DomainOverlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain overlay: %w", err)
	}
	var o DomainOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse domain overlay yaml: %w", err)
	}
	for i, d := range o.Domains {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("domain overlay entry %d has no name", i)
		}
		if d.Weight < 0 {
			return nil, fmt.Errorf("domain overlay '%s' has negative weight", d.Name)
		}
	}
	return &o, nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// applyDomainOverlay merges overlay entries onto the built-in catalog and
// returns the effective entry list. A nil overlay returns the catalog as is.
func applyDomainOverlay(catalog []domainEntry, overlay *DomainOverlay) []domainEntry {
	if overlay == nil || len(overlay.Domains) == 0 {
		return catalog
	}

	entries := make([]domainEntry, len(catalog))
	copy(entries, catalog)
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Name] = i
	}

	for _, od := range overlay.Domains {
		name := normalizeTextToken(od.Name)
		i, exists := index[name]
		if !exists {
			weight := od.Weight
			if weight == 0 {
				weight = 0.25
			}
			entries = append(entries, domainEntry{Name: name, Keywords: dedupeKeywords(nil, od.Keywords), Weight: weight})
			index[name] = len(entries) - 1
			continue
		}
		if od.Replace {
			entries[i].Keywords = dedupeKeywords(nil, od.Keywords)
		} else {
			entries[i].Keywords = dedupeKeywords(entries[i].Keywords, od.Keywords)
		}
		if od.Weight > 0 {
			entries[i].Weight = od.Weight
		}
	}
	return entries
}

func dedupeKeywords(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	var out []string
	for _, kw := range append(append([]string{}, base...), extra...) {
		normalized := normalizeTextToken(kw)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
