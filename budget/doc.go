// Package budget models the per-session read budget: the accumulated state,
// file classification, the escalation policy and the delegation advisor.
//
// Everything here is pure. Loading and persisting state lives in package
// session; turning verdicts into text lives in package render.
package budget
