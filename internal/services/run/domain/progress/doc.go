// Package progress models the progress value of a dungeon run.
//
// A run is always in exactly one Phase. Phases are ordered by narrative
// sequence, and every phase maps to a stable phase the run can safely be
// resumed from after the escorted key actor dies.
//
// PhaseSet is a separate bitmask type used only for membership questions
// ("is the run in one of these phases?"). It never stores the run's state.
package progress
