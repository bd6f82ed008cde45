// Package database provides the PostgreSQL connection pool used by the quote
// recorder, and the schema it writes to.
package database
