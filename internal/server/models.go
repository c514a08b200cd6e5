package server

import "github.com/kildespor/kildespor/models"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload. Exactly one of
// OrganizationID (join) or OrganizationName (create, caller becomes its
// admin) must be set.
type AuthSignupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationID   string `json:"organization_id,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// ChatRequest starts or continues a conversation. An empty ConversationID
// starts a new conversation titled after the message.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

// DebugRequest asks for the raw source-extraction report of a query.
type DebugRequest struct {
	Query string `json:"query"`
}

// CreateVideoRequest registers video metadata ahead of transcript ingest.
type CreateVideoRequest struct {
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	SecurityLevel models.SecurityLevel `json:"security_level,omitempty"`
	Duration      float64              `json:"duration,omitempty"`
}

// TranscriptSegment is one segment of an uploaded transcript.
type TranscriptSegment struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// UploadTranscriptRequest submits a full transcript for ingest.
type UploadTranscriptRequest struct {
	Segments []TranscriptSegment `json:"segments"`
}

// GrantRequest gives a user an explicit permission on a video.
type GrantRequest struct {
	UserID         string                `json:"user_id"`
	PermissionType models.PermissionType `json:"permission_type"`
}

// ConversationDetail is a conversation with its messages.
type ConversationDetail struct {
	Conversation models.Conversation `json:"conversation"`
	Messages     []models.Message    `json:"messages"`
}
