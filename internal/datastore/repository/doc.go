// Package repository provides GORM-backed access to the postit tables.
// Callers get sentinel errors instead of gorm.ErrRecordNotFound.
package repository
