package session

import (
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/errs"
	"github.com/jtodevs/fastlap/internal/vehicle"
	"github.com/jtodevs/fastlap/internal/vehicle/f1"
	"github.com/jtodevs/fastlap/internal/vehicle/kart"
)

// vehicleKind re-exports vehicle.Kind so callers don't need a second
// import just to name a registered vehicle's model kind.
type vehicleKind = vehicle.Kind

const (
	KindF1ThreeDOF = vehicle.KindF1ThreeDOF
	KindKart6DOF   = vehicle.KindKart6DOF
)

func buildDual(kind vehicleKind) (vehicle.Model[dual.Dual], error) {
	switch kind {
	case vehicle.KindF1ThreeDOF:
		return f1.New[dual.Dual](), nil
	case vehicle.KindKart6DOF:
		return kart.New[dual.Dual](), nil
	default:
		return nil, errs.Newf(errs.ModelMismatch, "session.buildDual", "unknown vehicle kind %q", kind)
	}
}

func buildFloat(kind vehicleKind) (vehicle.Model[dual.Float64], error) {
	switch kind {
	case vehicle.KindF1ThreeDOF:
		return f1.New[dual.Float64](), nil
	case vehicle.KindKart6DOF:
		return kart.New[dual.Float64](), nil
	default:
		return nil, errs.Newf(errs.ModelMismatch, "session.buildFloat", "unknown vehicle kind %q", kind)
	}
}

func applyOverrides(params *vehicle.ParamSet, overrides map[string]float64) error {
	for name, v := range overrides {
		if err := params.SetOverride(name, v); err != nil {
			return err
		}
	}
	return nil
}

// DualBuilder returns a closure suitable for ocp.NewProblem's buildModel
// argument: each call builds a fresh dual.Dual-instantiated model with
// name's registered parameter overrides applied.
func (s *Session) DualBuilder(name string) (func() vehicle.Model[dual.Dual], vehicleKind, error) {
	h, err := s.vehicle(name)
	if err != nil {
		return nil, "", err
	}
	build := func() vehicle.Model[dual.Dual] {
		m, err := buildDual(h.kind)
		if err != nil {
			panic(err) // kind was validated at PutVehicle time; this can't happen
		}
		if err := applyOverrides(m.Params(), h.overrides); err != nil {
			panic(err)
		}
		return m
	}
	return build, h.kind, nil
}

// FloatModel builds a single dual.Float64-instantiated model for name, for
// fast evaluation paths (steady-state seeding, output extraction) that
// don't need a Jacobian.
func (s *Session) FloatModel(name string) (vehicle.Model[dual.Float64], error) {
	h, err := s.vehicle(name)
	if err != nil {
		return nil, err
	}
	m, err := buildFloat(h.kind)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(m.Params(), h.overrides); err != nil {
		return nil, err
	}
	return m, nil
}
