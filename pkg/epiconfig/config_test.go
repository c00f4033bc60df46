package epiconfig_test

import (
	"testing"

	"github.com/Martico2432/rlgym-learn/pkg/epiconfig"
)

func TestLoadYAMLBytesOverridesDefaults(t *testing.T) {
	cfg, err := epiconfig.LoadYAMLBytes([]byte(`
minProcessStepsPerInference: 3
sendStateToAgentControllers: true
`))
	if err != nil {
		t.Fatalf("LoadYAMLBytes: %v", err)
	}
	if cfg.MinProcessStepsPerInference != 3 {
		t.Fatalf("MinProcessStepsPerInference = %d, want 3", cfg.MinProcessStepsPerInference)
	}
	if !cfg.SendStateToAgentControllers {
		t.Fatal("SendStateToAgentControllers = false, want true")
	}
	if cfg.FlinksFolder == "" {
		t.Fatal("FlinksFolder should still carry its default when unset in YAML")
	}
}

func TestValidateRequiresStateCodecWhenFlagged(t *testing.T) {
	cfg := epiconfig.Default()
	cfg.SendStateToAgentControllers = true
	if err := cfg.Validate(false, false); err == nil {
		t.Fatal("expected Validate to reject a missing state codec")
	}
	if err := cfg.Validate(true, false); err != nil {
		t.Fatalf("Validate with a state codec supplied: %v", err)
	}
}

func TestValidateRejectsNonPositiveMinSteps(t *testing.T) {
	cfg := epiconfig.Default()
	cfg.MinProcessStepsPerInference = 0
	if err := cfg.Validate(true, true); err == nil {
		t.Fatal("expected Validate to reject minProcessStepsPerInference < 1")
	}
}
