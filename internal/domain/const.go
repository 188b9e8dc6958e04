package domain

import "time"

const (
	DefaultRepositoryName    = "VuFind"
	DefaultEarliestDatestamp = "2000-01-01T00:00:00Z"
	DefaultCore              = "biblio"
	DefaultPageSize          = 100
	DefaultTokenLifetime     = 24 * time.Hour
)

// Checkpoint parameter keys that are owned by the server, never the client.
const (
	ParamCursor       = "cursor"
	ParamDeletedCount = "deletedCount"
)
