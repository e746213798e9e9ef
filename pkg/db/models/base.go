package models

import "github.com/google/uuid"

// ensureID assigns a random id when the row is created without one so inserts
// do not depend on the database generating primary keys.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
