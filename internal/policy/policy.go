package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andresuchdata/stocksim/internal/simulation"
)

// Preset is a named reorder policy loaded from YAML.
type Preset struct {
	Name   string
	Params simulation.Params
}

type policyFile struct {
	Policy struct {
		Name              string `yaml:"name"`
		simulation.Params `yaml:",inline"`
	} `yaml:"policy"`
}

// Load reads one policy file and validates it. Fields absent from the file
// keep their defaults; fields present override them, so an explicit zero
// (e.g. lead_time_days: 0) is honored rather than treated as unset.
func Load(path string) (Preset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, err
	}

	var doc policyFile
	doc.Policy.Params = simulation.DefaultParams()
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Preset{}, fmt.Errorf("parse policy %s: %w", path, err)
	}

	name := doc.Policy.Name
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if err := doc.Policy.Params.Validate(); err != nil {
		return Preset{}, fmt.Errorf("policy %s: %w", name, err)
	}
	return Preset{Name: name, Params: doc.Policy.Params}, nil
}

// LoadDir loads every .yaml/.yml preset in dir, keyed by preset name.
func LoadDir(dir string) (map[string]Preset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	presets := make(map[string]Preset)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		preset, err := Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, exists := presets[preset.Name]; exists {
			return nil, fmt.Errorf("duplicate policy name %q in %s", preset.Name, dir)
		}
		presets[preset.Name] = preset
	}
	return presets, nil
}

// Names lists preset names in sorted order, for logs and API listings.
func Names(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Overrides carries per-request parameter tweaks. Nil fields leave the base
// policy value untouched, so callers can override a single knob.
type Overrides struct {
	LeadTimeDays      *int     `json:"lead_time_days,omitempty"`
	SafetyStockFactor *float64 `json:"safety_stock_factor,omitempty"`
	HoldingCostRate   *float64 `json:"holding_cost_rate,omitempty"`
	StockoutCostRate  *float64 `json:"stockout_cost_rate,omitempty"`
	OrderCostFixed    *float64 `json:"fixed_order_cost,omitempty"`
	InitialInventory  *int     `json:"initial_inventory,omitempty"`
}

// Apply overlays the non-nil overrides onto base and returns the result.
func (o Overrides) Apply(base simulation.Params) simulation.Params {
	out := base
	if o.LeadTimeDays != nil {
		out.LeadTimeDays = *o.LeadTimeDays
	}
	if o.SafetyStockFactor != nil {
		out.SafetyStockFactor = *o.SafetyStockFactor
	}
	if o.HoldingCostRate != nil {
		out.HoldingCostRate = *o.HoldingCostRate
	}
	if o.StockoutCostRate != nil {
		out.StockoutCostRate = *o.StockoutCostRate
	}
	if o.OrderCostFixed != nil {
		out.OrderCostFixed = *o.OrderCostFixed
	}
	if o.InitialInventory != nil {
		out.InitialInventory = o.InitialInventory
	}
	return out
}
