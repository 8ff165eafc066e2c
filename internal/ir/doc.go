// Package ir holds the value model and record definitions shared by the
// storage, revisionable, API and compiler layers.
//
// ir imports nothing internal; every other internal package may import it.
//
// Constraints:
//   - no float types: numbers are int64 so revision hashes are stable
//   - JSON tags use snake_case
//   - revisions are ordered by revision number and a logical seq, never by
//     wall-clock time
package ir
