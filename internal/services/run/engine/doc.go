// Package engine owns running dungeon instances.
//
// Each Instance serializes its transitions behind a mutex: a signal is
// validated, decided, committed and its actions dispatched as one unit that
// never waits on a collaborator. Queries read an atomically published
// snapshot, so they observe either the state before a transition or the state
// after it.
package engine
