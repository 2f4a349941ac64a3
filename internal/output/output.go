// Package output extracts a solved ocp.Trajectory into the named
// scalar/vector outputs spec §6 lists (x, y, s, n, alpha, u, v, time, psi,
// every control by name, plus whatever a model's RegisterOutputs adds),
// reading model-specific outputs through the accessor table that
// RegisterOutputs returns in place of the source's string-based property
// lookup.
package output

import (
	"github.com/jtodevs/fastlap/internal/dual"
	"github.com/jtodevs/fastlap/internal/ocp"
	"github.com/jtodevs/fastlap/internal/vehicle"
)

// Extract builds every named output vector for traj, using model only for
// its StateNames/ControlNames/RegisterOutputs — model need not be the same
// instance ocp.Solver ran against, only the same kind and parameters.
// Every name is prefixed with prefix (config.OutputVariablesPrefix).
func Extract(traj *ocp.Trajectory, model vehicle.Model[dual.Float64], prefix string) map[string][]float64 {
	out := map[string][]float64{
		prefix + "s":    append([]float64(nil), traj.S...),
		prefix + "x":    append([]float64(nil), traj.X...),
		prefix + "y":    append([]float64(nil), traj.Y...),
		prefix + "psi":  append([]float64(nil), traj.Psi...),
		prefix + "ax":   append([]float64(nil), traj.Ax...),
		prefix + "ay":   append([]float64(nil), traj.Ay...),
	}

	stateNames := model.StateNames()
	for k, name := range stateNames {
		col := make([]float64, len(traj.Q))
		for i, q := range traj.Q {
			col[i] = q[k]
		}
		out[prefix+name] = col
	}

	algebraicNames := model.AlgebraicNames()
	for k, name := range algebraicNames {
		col := make([]float64, len(traj.QA))
		for i, qa := range traj.QA {
			col[i] = qa[k]
		}
		out[prefix+name] = col
	}

	controlNames := model.ControlNames()
	for k, name := range controlNames {
		col := make([]float64, len(traj.U))
		for i, u := range traj.U {
			col[i] = u[k]
		}
		out[prefix+name] = col
	}

	samples := nodeSamples(traj)
	for name, acc := range model.RegisterOutputs() {
		col := make([]float64, len(samples))
		for i, s := range samples {
			col[i] = acc(s)
		}
		out[prefix+name] = col
	}

	for key, col := range traj.Sensitivity {
		out[prefix+key] = append([]float64(nil), col...)
	}

	return out
}

// Scalars collects the per-run scalar outputs spec §6 names: laptime and
// every parameter's dlaptime/dp when sensitivity was requested.
func Scalars(traj *ocp.Trajectory, prefix string) map[string]float64 {
	out := map[string]float64{prefix + "laptime": traj.Laptime}
	for name, d := range traj.DLaptimeDP {
		out[prefix+"derivatives/laptime/"+name] = d
	}
	return out
}

func nodeSamples(traj *ocp.Trajectory) []vehicle.NodeSample {
	samples := make([]vehicle.NodeSample, len(traj.Q))
	for i := range traj.Q {
		samples[i] = vehicle.NodeSample{
			S:  traj.S[i],
			Q:  traj.Q[i],
			QA: traj.QA[i],
			U:  traj.U[i],
			Body: vehicle.BodyState{
				Ax: traj.Ax[i], Ay: traj.Ay[i],
				X: traj.X[i], Y: traj.Y[i], Psi: traj.Psi[i],
			},
		}
	}
	return samples
}
