// Package dbhelper provides active-record style collections and records over
// relational tables.
//
// A Collection is bound to one table via a CollectionSpec. It loads Records,
// creates and deletes them, and hands out FilterCriteria for listing with
// search, selection, ordering and paging. Records track which data keys were
// modified and Save writes only those.
//
// Queries are built with the criteria package and compiled by criteriasql,
// then rebound to the driver's placeholder style by sqlx, so the same
// collection works against SQLite and PostgreSQL.
package dbhelper
