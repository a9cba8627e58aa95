package terminal

import (
	"fmt"
	"sync"

	"github.com/appetiteclub/apt"

	"github.com/GetwithitMan/gwi-pos-sub008/pkg/enums/ordertype"
)

// WorkflowRules describe what an order type demands before a kitchen send.
type WorkflowRules struct {
	RequiresTable        bool `json:"requires_table"`
	RequiresTabName      bool `json:"requires_tab_name"`
	RequiresPaymentFirst bool `json:"requires_payment_first"`
}

// WorkflowRegistry holds per-order-type workflow rules. Defaults cover the
// built-in types; config can override them at startup and unknown types get
// the zero value so older terminals keep working when new types appear.
type WorkflowRegistry struct {
	mu    sync.RWMutex
	rules map[string]WorkflowRules
}

func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		rules: map[string]WorkflowRules{
			ordertype.Types.DineIn.Code():   {RequiresTable: true},
			ordertype.Types.BarTab.Code():   {RequiresTabName: true},
			ordertype.Types.Takeout.Code():  {RequiresPaymentFirst: true},
			ordertype.Types.Delivery.Code(): {RequiresPaymentFirst: true},
			ordertype.Types.Counter.Code():  {},
		},
	}
}

// Rules returns the workflow for an order type, zero value for unknown ones.
func (r *WorkflowRegistry) Rules(orderType string) WorkflowRules {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[orderType]
}

func (r *WorkflowRegistry) Set(orderType string, rules WorkflowRules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[orderType] = rules
}

// ApplyConfigOverrides reads workflow.<type>.requires_table,
// .requires_tab_name and .requires_payment_first keys and overrides the
// defaults wherever a key is set to "true" or "false".
func (r *WorkflowRegistry) ApplyConfigOverrides(config *apt.Config) {
	for _, t := range ordertype.All {
		rules := r.Rules(t.Code())
		changed := false

		if v := config.GetStringOrDef(fmt.Sprintf("workflow.%s.requires_table", t.Code()), ""); v != "" {
			rules.RequiresTable = v == "true"
			changed = true
		}
		if v := config.GetStringOrDef(fmt.Sprintf("workflow.%s.requires_tab_name", t.Code()), ""); v != "" {
			rules.RequiresTabName = v == "true"
			changed = true
		}
		if v := config.GetStringOrDef(fmt.Sprintf("workflow.%s.requires_payment_first", t.Code()), ""); v != "" {
			rules.RequiresPaymentFirst = v == "true"
			changed = true
		}

		if changed {
			r.Set(t.Code(), rules)
		}
	}
}
