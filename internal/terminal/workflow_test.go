package terminal

import (
	"testing"

	"github.com/appetiteclub/apt"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/enums/ordertype"
)

func TestWorkflowRegistryDefaults(t *testing.T) {
	tests := []struct {
		name      string
		orderType string
		want      WorkflowRules
	}{
		{
			name:      "dineInNeedsTable",
			orderType: ordertype.Types.DineIn.Code(),
			want:      WorkflowRules{RequiresTable: true},
		},
		{
			name:      "barTabNeedsName",
			orderType: ordertype.Types.BarTab.Code(),
			want:      WorkflowRules{RequiresTabName: true},
		},
		{
			name:      "takeoutNeedsPaymentFirst",
			orderType: ordertype.Types.Takeout.Code(),
			want:      WorkflowRules{RequiresPaymentFirst: true},
		},
		{
			name:      "deliveryNeedsPaymentFirst",
			orderType: ordertype.Types.Delivery.Code(),
			want:      WorkflowRules{RequiresPaymentFirst: true},
		},
		{
			name:      "counterHasNoRequirements",
			orderType: ordertype.Types.Counter.Code(),
			want:      WorkflowRules{},
		},
		{
			name:      "unknownTypeGetsZeroValue",
			orderType: "drive-through",
			want:      WorkflowRules{},
		},
		{
			name:      "emptyTypeGetsZeroValue",
			orderType: "",
			want:      WorkflowRules{},
		},
	}

	registry := NewWorkflowRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Rules(tt.orderType)
			if got != tt.want {
				t.Errorf("Rules(%q) = %+v, want %+v", tt.orderType, got, tt.want)
			}
		})
	}
}

func TestWorkflowRegistrySet(t *testing.T) {
	registry := NewWorkflowRegistry()

	registry.Set("counter", WorkflowRules{RequiresPaymentFirst: true})

	got := registry.Rules("counter")
	if !got.RequiresPaymentFirst {
		t.Error("Set() override not applied")
	}

	// New types can be registered at runtime.
	registry.Set("drive-through", WorkflowRules{RequiresPaymentFirst: true})
	if !registry.Rules("drive-through").RequiresPaymentFirst {
		t.Error("Set() should register unknown types")
	}
}

func TestWorkflowRegistryApplyConfigOverridesEmpty(t *testing.T) {
	registry := NewWorkflowRegistry()

	registry.ApplyConfigOverrides(apt.NewConfig())

	// No keys set, defaults must survive untouched.
	if got := registry.Rules(ordertype.Types.DineIn.Code()); !got.RequiresTable {
		t.Errorf("dine-in rules = %+v, defaults should survive an empty config", got)
	}
	if got := registry.Rules(ordertype.Types.Counter.Code()); got != (WorkflowRules{}) {
		t.Errorf("counter rules = %+v, want zero value", got)
	}
}
