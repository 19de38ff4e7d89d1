// Package entities contains the GORM models of the postit schema.
//
// Grids (Domain) own criteria. Practices are global. An Activity owns its
// annotations and two association tables that record which criteria and
// practices are in use by at least one of those annotations.
package entities
