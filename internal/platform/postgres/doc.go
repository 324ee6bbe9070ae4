// Package postgres provides the PostgreSQL implementation of the store
// interfaces, plus the embedded schema migrations.
package postgres
