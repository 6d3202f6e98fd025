// Package models contains the GORM persistence models. Domain entities stay
// free of ORM tags; each model converts to and from its entity.
//
// Models avoid database-specific column defaults so the same structs can be
// auto-migrated into SQLite for repository tests. The PostgreSQL schema is
// owned by the SQL migrations.
package models
