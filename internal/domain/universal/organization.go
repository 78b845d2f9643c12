package universal

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Its root entity (type ORGANIZATION) carries the
// same id and is the target of membership relationships.
type Organization struct {
	ID        uuid.UUID
	Name      string
	Code      string
	Settings  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
