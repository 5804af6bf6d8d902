package simulation

import (
	"errors"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.LeadTimeDays != 2 {
		t.Errorf("lead_time_days = %d, want 2", p.LeadTimeDays)
	}
	if p.SafetyStockFactor != 1.2 {
		t.Errorf("safety_stock_factor = %g, want 1.2", p.SafetyStockFactor)
	}
	if p.HoldingCostRate != 0.1 {
		t.Errorf("holding_cost_rate = %g, want 0.1", p.HoldingCostRate)
	}
	if p.StockoutCostRate != 1.0 {
		t.Errorf("stockout_cost_rate = %g, want 1.0", p.StockoutCostRate)
	}
	if p.OrderCostFixed != 10.0 {
		t.Errorf("order_cost_fixed = %g, want 10.0", p.OrderCostFixed)
	}
	if p.InitialInventory != nil {
		t.Errorf("initial_inventory = %v, want nil", *p.InitialInventory)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default params failed validation: %v", err)
	}
}

func TestParamsValidate(t *testing.T) {
	zeroLead := DefaultParams()
	zeroLead.LeadTimeDays = 0

	zeroRates := DefaultParams()
	zeroRates.HoldingCostRate = 0
	zeroRates.StockoutCostRate = 0
	zeroRates.OrderCostFixed = 0

	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"defaults", DefaultParams(), false},
		{"zero lead time allowed", zeroLead, false},
		{"zero cost rates allowed", zeroRates, false},
		{"negative lead time", Params{LeadTimeDays: -1, SafetyStockFactor: 1.2}, true},
		{"zero safety stock factor", Params{LeadTimeDays: 2}, true},
		{"negative holding rate", Params{LeadTimeDays: 2, SafetyStockFactor: 1.2, HoldingCostRate: -0.1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
