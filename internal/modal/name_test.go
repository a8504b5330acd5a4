package modal

import (
	"reflect"
	"testing"
)

func TestParseFragment(t *testing.T) {
	tests := []struct {
		fragment string
		wantName Name
		wantSub  []string
	}{
		{"", None, nil},
		{"#", None, nil},
		{"signup", "signup", nil},
		{"#settings:account", "settings", []string{"account"}},
		{"settings:account:verify-email", "settings", []string{"account", "verify-email"}},
		{"settings:", "settings", nil},
		{"  #report  ", "report", nil},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			name, sub := ParseFragment(tt.fragment)
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if !reflect.DeepEqual(sub, tt.wantSub) {
				t.Errorf("sub = %v, want %v", sub, tt.wantSub)
			}
		})
	}
}

func TestFragment(t *testing.T) {
	if got := Fragment("settings", "account"); got != "settings:account" {
		t.Errorf("Fragment(settings, account) = %q", got)
	}
	if got := Fragment("settings:account", "verify-email"); got != "settings:verify-email" {
		t.Errorf("Fragment should only keep the base of a composite name, got %q", got)
	}
	if got := Fragment(None, "account"); got != "" {
		t.Errorf("Fragment(None) = %q, want empty", got)
	}
}

func TestName_BaseAndSub(t *testing.T) {
	n := Name("settings:account:verify-email")
	if n.Base() != "settings" {
		t.Errorf("Base() = %q", n.Base())
	}
	if got := n.Sub(); !reflect.DeepEqual(got, []string{"account", "verify-email"}) {
		t.Errorf("Sub() = %v", got)
	}
	if Name("report").Sub() != nil {
		t.Error("Sub() of a plain name should be nil")
	}
}
