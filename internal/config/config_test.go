package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jtodevs/fastlap/internal/config"
)

func floatPtr(v float64) *float64 { return &v }

func TestPreprocessorOptionsDefaultsWhenUnset(t *testing.T) {
	o := config.DefaultPreprocessorOptions()
	if o.GetEpsD() != 1.0e-1 {
		t.Errorf("GetEpsD() = %f, want 1e-1", o.GetEpsD())
	}
	if o.GetMaximumKappa() != 0.1 {
		t.Errorf("GetMaximumKappa() = %f, want 0.1", o.GetMaximumKappa())
	}
}

func TestPreprocessorOptionsValidateRejectsNonPositiveMaximumDN(t *testing.T) {
	o := &config.PreprocessorOptions{MaximumDN: floatPtr(-1)}
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject a non-positive maximum_dn")
	}
}

func TestLoadPreprocessorOptionsRejectsNonJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.txt")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := config.LoadPreprocessorOptions(path); err == nil {
		t.Error("LoadPreprocessorOptions should reject a non-.json path")
	}
}

func TestLoadPreprocessorOptionsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.json")
	if err := os.WriteFile(path, []byte(`{"eps_d": 0.25}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	o, err := config.LoadPreprocessorOptions(path)
	if err != nil {
		t.Fatalf("LoadPreprocessorOptions: %v", err)
	}
	if o.GetEpsD() != 0.25 {
		t.Errorf("GetEpsD() = %f, want 0.25", o.GetEpsD())
	}
}

func TestOptimalLaptimeOptionsValidateRequiresMinimumPoints(t *testing.T) {
	o := &config.OptimalLaptimeOptions{NPoints: 1}
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject fewer than 2 mesh points")
	}
}

func TestOptimalLaptimeOptionsValidateRejectsConstantControlMode(t *testing.T) {
	o := &config.OptimalLaptimeOptions{
		NPoints: 10,
		Controls: map[string]config.ControlConfig{
			"delta": {Mode: config.ControlConstant},
		},
	}
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject the reserved constant control mode")
	}
}

func TestOptimalLaptimeOptionsValidateRequiresHypermeshBreakpoints(t *testing.T) {
	o := &config.OptimalLaptimeOptions{
		NPoints: 10,
		Controls: map[string]config.ControlConfig{
			"delta": {Mode: config.ControlHypermesh},
		},
	}
	if err := o.Validate(); err == nil {
		t.Error("Validate should reject hypermesh mode without breakpoints")
	}
}

func TestOptimalLaptimeOptionsGettersDefaultWhenUnset(t *testing.T) {
	o := &config.OptimalLaptimeOptions{NPoints: 10}
	if o.GetTol() != 1e-10 {
		t.Errorf("GetTol() = %e, want 1e-10", o.GetTol())
	}
	if o.GetAcceptableTol() != 1e-8 {
		t.Errorf("GetAcceptableTol() = %e, want 1e-8", o.GetAcceptableTol())
	}
	if o.GetOutputVariablesPrefix() != "" {
		t.Errorf("GetOutputVariablesPrefix() = %q, want empty", o.GetOutputVariablesPrefix())
	}
}
