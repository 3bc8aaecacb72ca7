// Package politics derives a ZIP's political lean from county-level
// election results.
//
// A ZIP maps to one or more counties, each with a weight. For each of the two
// elections (presidential, gubernatorial) the county two-party fractions are
// averaged by weight, but only over counties that actually have a result:
//
//	units: Collin 0.5 (60/40), Denton 0.5 (no data)
//	blend: dem = 0.5*0.6 / (0.5*0.6 + 0.5*0.4) = 0.6
//
// A county with a zero two-party total is treated the same as one with no
// data at all. That is observable behavior callers rely on, so it is kept
// even though it cannot distinguish "no votes" from "not reported".
//
// The overall lean weights the elections 0.7 presidential, 0.3
// gubernatorial. Every fraction is rounded to three decimals before any
// label is derived, so boundary cases are decided on the rounded values.
package politics
