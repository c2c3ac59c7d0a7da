package globals

// Context keys
type ContextKey string

const (
	UserIDKey  ContextKey = "userId"
	RoleKey    ContextKey = "role"
	TokenIDKey ContextKey = "jti"
	// UploadKey carries the files saved by filemgr.Upload to the next handler.
	UploadKey ContextKey = "upload"
)

// Redis channel carrying domain events to the notification worker.
const EventsChannel = "cropconnect-events"

const Currency = "INR"
