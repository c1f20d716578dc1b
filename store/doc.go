// Package store defines the remote relational store used by tool handlers.
//
// Postgres talks to PostgreSQL through a pgx pool and reports a call to an
// undefined stored procedure (SQLSTATE 42883 naming that procedure) as
// ErrProcedureNotFound. Memory is a
// dependency-free implementation for tests and offline runs.
package store
