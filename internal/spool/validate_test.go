package spool

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		spool   Spool
		wantErr string
	}{
		{"minimal", Spool{DisplayName: "PLA black"}, ""},
		{"full", Spool{DisplayName: "PETG", Density: Ptr(1.27), Diameter: Ptr(1.75), Color: "#00ff00", TotalWeight: Ptr(1000.0)}, ""},
		{"missing name", Spool{}, "DisplayName"},
		{"zero density", Spool{DisplayName: "x", Density: Ptr(0.0)}, "Density"},
		{"negative weight", Spool{DisplayName: "x", UsedWeight: Ptr(-1.0)}, "UsedWeight"},
		{"bad color", Spool{DisplayName: "x", Color: "red"}, "Color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.spool)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}
