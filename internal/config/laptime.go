package config

import (
	"encoding/json"
	"fmt"
)

// ControlMode is the per-control decision-variable treatment of spec §4.F.
type ControlMode string

const (
	ControlDontOptimize ControlMode = "dont_optimize"
	ControlConstant     ControlMode = "constant" // reserved, rejected by ocp.Problem.Build
	ControlHypermesh    ControlMode = "hypermesh"
	ControlFullMesh     ControlMode = "full_mesh"
)

// IntegralConstraint is one named quantity integrated along s, bounded
// between Lower and Upper (spec §4.F).
type IntegralConstraint struct {
	Name  string  `json:"name"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ControlConfig is the per-control-index configuration: its transcription
// mode, dissipation weight, and (for hypermesh) its breakpoints.
type ControlConfig struct {
	Mode         ControlMode `json:"mode"`
	Dissipation  float64     `json:"dissipation"`
	Breakpoints  []float64   `json:"breakpoints,omitempty"` // hypermesh only
}

// OptimalLaptimeOptions mirrors the OCP builder/driver configuration of
// spec §4.F/§4.G. Unlike PreprocessorOptions this is not a sparse overlay
// over defaults: NPoints, IsClosed and IsDirect must always be supplied by
// the caller, since there is no sane default track length or transcription
// mode. The solver tolerances do have defaults (the teacher's Get*
// pattern), since spec §4.G fixes them.
type OptimalLaptimeOptions struct {
	NPoints  int  `json:"n_points"`
	IsClosed bool `json:"is_closed"`
	IsDirect bool `json:"is_direct"`

	// SteadyStateSpeed seeds every mesh point with the steady-state
	// cornering solution at this speed when WarmStart is false. Read from
	// the correctly-named "steady_state_speed" key — the source's
	// "options/initial_speed" read under this branch is a documented bug,
	// not carried forward (spec §9 open question).
	SteadyStateSpeed float64 `json:"steady_state_speed"`
	WarmStart        bool    `json:"warm_start"`

	ComputeSensitivity bool `json:"compute_sensitivity"`

	Controls            map[string]ControlConfig `json:"controls,omitempty"`
	IntegralConstraints  []IntegralConstraint      `json:"integral_constraints,omitempty"`

	PrintLevel *int `json:"print_level,omitempty"`

	Tol           *float64 `json:"tol,omitempty"`
	ConstrViolTol *float64 `json:"constr_viol_tol,omitempty"`
	AcceptableTol *float64 `json:"acceptable_tol,omitempty"`

	// OutputVariablesPrefix is prepended to every named output (spec §6).
	OutputVariablesPrefix string `json:"output_variables_prefix,omitempty"`
}

// LoadOptimalLaptimeOptions loads an OptimalLaptimeOptions from a JSON file.
func LoadOptimalLaptimeOptions(path string) (*OptimalLaptimeOptions, error) {
	data, err := readValidatedJSONFile(path)
	if err != nil {
		return nil, err
	}
	opts := &OptimalLaptimeOptions{}
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse optimal-laptime options JSON: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid optimal-laptime options: %w", err)
	}
	return opts, nil
}

// Validate enforces the invariants spec §4.F/§4.G rely on.
func (o *OptimalLaptimeOptions) Validate() error {
	if o.NPoints < 2 {
		return fmt.Errorf("n_points must be at least 2, got %d", o.NPoints)
	}
	for name, c := range o.Controls {
		if c.Mode == ControlConstant {
			return fmt.Errorf("control %q: mode %q is reserved and unsupported", name, ControlConstant)
		}
		if c.Mode == ControlHypermesh && len(c.Breakpoints) == 0 {
			return fmt.Errorf("control %q: hypermesh mode requires breakpoints", name)
		}
		if c.Dissipation < 0 {
			return fmt.Errorf("control %q: dissipation must be non-negative, got %f", name, c.Dissipation)
		}
	}
	for _, ic := range o.IntegralConstraints {
		if ic.Lower > ic.Upper {
			return fmt.Errorf("integral constraint %q: lower bound %f exceeds upper bound %f", ic.Name, ic.Lower, ic.Upper)
		}
	}
	return nil
}

func (o *OptimalLaptimeOptions) GetPrintLevel() int {
	if o.PrintLevel == nil {
		return 0
	}
	return *o.PrintLevel
}

func (o *OptimalLaptimeOptions) GetTol() float64 {
	if o.Tol == nil {
		return 1e-10
	}
	return *o.Tol
}

func (o *OptimalLaptimeOptions) GetConstrViolTol() float64 {
	if o.ConstrViolTol == nil {
		return 1e-10
	}
	return *o.ConstrViolTol
}

func (o *OptimalLaptimeOptions) GetAcceptableTol() float64 {
	if o.AcceptableTol == nil {
		return 1e-8
	}
	return *o.AcceptableTol
}

func (o *OptimalLaptimeOptions) GetOutputVariablesPrefix() string {
	return o.OutputVariablesPrefix
}
