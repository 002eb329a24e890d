// Package transition decides how a run reacts to one signal.
//
// Decide is pure: given the same state, layout and signal it returns the same
// decision and never mutates its inputs. A decision carries the next state and
// the actions to dispatch, or a rejection explaining why nothing happened.
// Rejections are ordinary outcomes under duplicate or late notifications and
// are not errors.
package transition
