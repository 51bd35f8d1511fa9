package rules

import (
	"reflect"
	"testing"
)

func TestDefaultRuleRegistry_Order(t *testing.T) {
	reg := NewDefaultRuleRegistry()
	for _, r := range builtins() {
		reg.Register(r)
	}
	if len(reg.All()) != 11 {
		t.Fatalf("want 11 rules, got %d", len(reg.All()))
	}
	ids := reg.IDs()
	if ids[0] != "VOLUME_UNATTACHED" || ids[len(ids)-1] != "IAM_USER_NO_MFA" {
		t.Errorf("IDs not in registration order: %v", ids)
	}
	if !reflect.DeepEqual(reg.All()[5], Rule(NewLBIdleRule())) {
		t.Errorf("All()[5] = %v; want LB_IDLE", reg.All()[5])
	}
}

func TestDefaultRuleRegistry_DuplicatePanics(t *testing.T) {
	reg := NewDefaultRuleRegistry()
	reg.Register(NewLBIdleRule())
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg.Register(NewLBIdleRule())
}
