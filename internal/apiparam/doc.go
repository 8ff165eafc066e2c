// Package apiparam declares, validates and resolves API method parameters.
//
// A Definition lists Params and Rules. A Resolver reads raw string values
// from a Source (HTTP request or map), validates each param by its type,
// runs lookups that turn raw values into domain values, and then applies
// the rules. Every problem is collected into ValidationErrors with stable
// codes, so a client sees all of them at once.
package apiparam
