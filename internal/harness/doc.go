// Package harness runs scripted revisionable scenarios against a fresh
// store and checks the resulting event trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: copy_article
//	description: "Copying a revision copies data keys, then parts"
//	types: ../types            # CUE record types, relative to the scenario
//	author: editor             # default transaction author
//	steps:
//	  - op: create
//	    record: a
//	    type: article
//	    label: First
//	  - op: start
//	    record: a
//	    comments: "set title"
//	  - op: set_key
//	    record: a
//	    key: title
//	    value: Hello
//	  - op: end
//	    record: a
//	  - op: create
//	    record: b
//	    type: article
//	  - op: copy
//	    from: a
//	    record: b
//	    skip_keys: [views]
//	assertions:
//	  - type: revision_count
//	    record: a
//	    count: 2
//	  - type: data_key
//	    record: b
//	    key: title
//	    value: Hello
//
// # Step Operations
//
//   - create: creates a record of type under the alias record
//   - start: starts a transaction (author, comments)
//   - set_key, set_part, set_label, set_state: change the open transaction
//   - end: ends the transaction
//   - rollback: rolls the transaction back
//   - copy: copies revision (0 = latest) of from into record
//   - veto: installs a before_save listener on record that rejects saves
//
// A failing step is recorded and the scenario continues. Every failure must
// be matched by an error assertion, otherwise the scenario fails.
//
// # Assertion Types
//
//   - revision_count: the record has count revisions
//   - data_key: a data key of the latest (or given) revision equals value
//   - event_order: the record's events appear in the given order
//   - error: step failed with code
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite store, a logical clock starting at
// zero, sequential transaction IDs and a stepping wall clock, so the same
// scenario always yields a byte-identical trace. RunWithGolden compares that
// trace against testdata/golden/<name>.golden.
package harness
