// Package criteria provides the filter criteria representation used by
// DBHelper collections to describe which records to list.
//
// A Query names a table, the columns to return, an optional filter
// predicate, ordering and paging. Backends compile it; see criteriasql
// for the SQLite/PostgreSQL compiler.
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package implement it, so backends can switch over every
// case:
//
//	switch p := criteria.Deref(pred).(type) {
//	case criteria.Equals:
//	case criteria.In:
//	case criteria.Compare:
//	case criteria.Search:
//	case criteria.IsNull:
//	case criteria.And:
//	case criteria.Or:
//	case criteria.Not:
//	}
//
// All literal values are ir.IRValue. Floats do not exist in the value
// model, so there is no float comparison.
package criteria
