// Package storage persists plate readings in PostgreSQL.
//
// Each call to SaveDetections writes one plate_readings row per detected
// plate in a single transaction. Plates without a reading keep their box and
// detection confidence with NULL text, reading confidence and polygon.
package storage
