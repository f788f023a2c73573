// Package alarm contains core domain types for the alarm business logic.
//
// It defines State (the arm lifecycle), Actor (who changed the state), Cause
// (what triggered an alarm), Transition (one state change) and Status (a
// point-in-time snapshot) with Clone helpers to avoid leaking internal references.
package alarm
