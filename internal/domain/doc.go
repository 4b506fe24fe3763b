// Package domain models the station registry and the case-count tables that
// the compiler reconciles into one disease incidence table per year.
//
// # Data Sources
//
// Stations come from the GHCN-Daily inventory (ghcnd-stations.txt), a
// fixed-width text file with no header row. Case counts come from yearly
// surveillance CSV exports, one file per year, plus a second overlapping export
// for years that were reported twice. Climate observations are CSV files keyed
// by station ID.
//
// # Station Identifier Conventions
//
// GHCN identifiers are 11 characters:
//
//	"USC00021026"  →  country "US", network "C", site "00021026"
//
// The state is not part of the identifier proper. The registry carries it in a
// dedicated column for US stations, but older extracts omit that column, so the
// region code is derived from the identifier when the column is blank: skip the
// two-letter country prefix and keep the first two letters that follow. This is
// a heuristic; the result is never validated against a code list.
//
// # Case File Conventions
//
// Column names are not stable across years. The cumulative count column embeds
// the year ("Cum 2020", "Cum 2019†") or is just "Cum" in older exports. Header
// cells carry stray whitespace. Later rows for the same state supersede earlier
// partial counts, so the last row wins.
//
// Aggregate regions ("Pacific", "Mountain") appear as pseudo-states whose value
// is the region total. They are used to backfill members that are missing for a
// year and are removed afterwards.
//
// # Unknown Values
//
//	Numeric cells that fail to parse become nil, never zero.
//	Empty region codes and names mean "unknown".
package domain
