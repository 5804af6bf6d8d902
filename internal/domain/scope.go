package domain

import "strings"

// KPIScope selects the grouping key for a KPI report.
type KPIScope string

const (
	ScopeProduct  KPIScope = "product"
	ScopeCategory KPIScope = "category"
	ScopeRegion   KPIScope = "region"
)

var kpiScopes = map[string]KPIScope{
	"product":    ScopeProduct,
	"products":   ScopeProduct,
	"category":   ScopeCategory,
	"categories": ScopeCategory,
	"region":     ScopeRegion,
	"regions":    ScopeRegion,
}

// ParseKPIScope resolves a scope from its API path form (case-insensitive,
// singular or plural).
func ParseKPIScope(s string) (KPIScope, bool) {
	scope, ok := kpiScopes[strings.ToLower(strings.TrimSpace(s))]

	return scope, ok
}
