// Package sqlite persists tracking runs and their evaluations in SQLite.
//
// A run is one finalised track store together with the tracker parameters
// that produced it. Evaluations compare a candidate run against a reference
// run and keep the contingency table and skill scores. The schema is owned
// by the embedded golang-migrate migrations and applied on Open.
package sqlite
