// Package isoduration formats elapsed time between two Caliper instants as an
// ISO-8601 duration restricted to day, hour, minute and second units.
//
// # Grammar
//
// Every result has the shape
//
//	P[<days>D]T[<hh>H][<mm>M]<ss>[.<fraction>]S
//
// A unit is written once it, or any larger unit, is non-zero. Hours and minutes
// are zero-padded to two digits, seconds always appear with at least two integer
// digits, and a fractional part keeps up to six digits with trailing zeros
// removed:
//
//	isoduration.Format("2015-09-15T10:15:00.000000Z", "2015-09-15T11:05:00.000000Z")
//	// "PT50M00S"
//
//	isoduration.Format("2015-09-15T10:15:00.000000Z", "2015-09-15T11:15:00.500000Z")
//	// "PT01H00M00.5S"
//
// # Negative intervals
//
// An end instant at or before the start yields PT00S. Elapsed time is never
// negative, so attempts whose recorded end precedes their start are reported as
// zero-length rather than rejected.
//
// # Precision
//
// Instants carry microsecond resolution; all arithmetic is done on integer
// microseconds, so no floating point rounding reaches the output.
//
// All functions are pure and safe for concurrent use.
package isoduration
