package fm_api_client

const (
	// DefaultBaseURL points at a locally running backend
	DefaultBaseURL = "http://localhost:8080/api"

	// Live match endpoints
	LiveMatchEndpoint      = "/live-match/%s"
	LiveMatchJoinEndpoint  = "/live-match/%s/join"
	LiveMatchLeaveEndpoint = "/live-match/%s/leave"
	LiveMatchesEndpoint    = "/live-match/all"

	// Notification endpoints
	UnreadNotificationsEndpoint = "/notifications/unread"
	MarkReadEndpoint            = "/notifications/%s/read"
	MarkAllReadEndpoint         = "/notifications/mark-all-read"

	// Manager endpoints
	ManagerProfileEndpoint = "/managers/profile"

	// Headers
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)
