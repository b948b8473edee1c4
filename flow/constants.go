// Package flow solves the shallow-stream momentum balance for glacier
// velocity and steps the mass continuity equation for thickness. The
// discretization is piecewise-linear finite elements on the triangulations
// produced by the mesh package; linear systems are assembled into sparse
// matrices and solved by preconditioned conjugate gradients.
package flow

import "math"

// Unit system: lengths in meters, time in years, stress in megapascals.
// Densities absorb the unit conversions so that rho*g*h is a stress gradient
// in MPa per meter.
const (
	// Year is the length of a year in seconds.
	Year = 365.25 * 24 * 60 * 60

	// Gravity is the gravitational acceleration in m/yr^2.
	Gravity = 9.81 * Year * Year

	// IceDensity and SeawaterDensity are in MPa yr^2 / m^2.
	IceDensity      = 917.0 / (Year * Year) * 1e-6
	SeawaterDensity = 1024.0 / (Year * Year) * 1e-6

	// GlenExponent is the stress exponent n in Glen's flow law.
	GlenExponent = 3.0

	// IdealGasConstant is in J / (mol K).
	IdealGasConstant = 8.3144
)

// RateFactor returns the rate factor A in Glen's flow law for ice at
// temperature T (kelvin), in units of MPa^-3 / yr. The Arrhenius relation
// switches activation energy at -10 C.
func RateFactor(T float64) float64 {
	const transition = 263.15
	var A0, Q float64 // Pa^-3 s^-1, J/mol
	if T < transition {
		A0, Q = 3.985e-13, 60e3
	} else {
		A0, Q = 1.916e3, 139e3
	}
	a := A0 * math.Exp(-Q/(IdealGasConstant*T))
	// Convert Pa^-3 s^-1 to MPa^-3 yr^-1.
	return a * 1e18 * Year
}

// ReducedGravity is the buoyancy-reduced density times gravity used for
// floating ice: rho_ice * (1 - rho_ice/rho_seawater) * g, in MPa/m.
func ReducedGravity() float64 {
	return IceDensity * (1 - IceDensity/SeawaterDensity) * Gravity
}
