// Package models holds the GORM rows behind the revenue aggregates and the
// event outbox. Domain types stay free of ORM tags; each model converts with
// ToDomain and FromDomain, and repositories only ever read or write models.
//
// The column layout mirrors migrations/. AutoMigrate over these models is
// only used for sqlite and tests.
package models
