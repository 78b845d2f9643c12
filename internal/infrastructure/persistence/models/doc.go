// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities carry no GORM tags or table mappings
// 2. Persistence models own column names, indexes and JSON encoding
// 3. FromDomain/ToDomain convert between the two
//
// Structure:
// - base.go: RowModel and StampedModel column sets
// - universal.go: the organization registry and the five universal tables
package models
