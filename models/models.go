package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrVideoNotFound is returned when a video does not exist or is invisible to the caller.
var ErrVideoNotFound = errors.New("video not found")

// ErrConversationNotFound is returned when a conversation is missing or owned by someone else.
var ErrConversationNotFound = errors.New("conversation not found")

// Role is a user's platform role.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgAdmin   Role = "org_admin"
	RoleUser       Role = "user"
)

// SecurityLevel classifies a video for access control.
type SecurityLevel string

const (
	SecurityPublic       SecurityLevel = "public"
	SecurityInternal     SecurityLevel = "internal"
	SecurityConfidential SecurityLevel = "confidential"
	SecuritySecret       SecurityLevel = "secret"
)

// VideoStatus tracks a video through its processing lifecycle.
type VideoStatus string

const (
	VideoUploading  VideoStatus = "uploading"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// PermissionType is the kind of explicit grant on a video.
type PermissionType string

const (
	PermissionView  PermissionType = "view"
	PermissionEdit  PermissionType = "edit"
	PermissionAdmin PermissionType = "admin"
)

// User is a platform account scoped to one organization.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	OrganizationID string    `json:"organization_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Video is an uploaded recording whose transcript has been segmented.
type Video struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	OrganizationID string        `json:"organization_id"`
	UploadedBy     string        `json:"uploaded_by"`
	SecurityLevel  SecurityLevel `json:"security_level"`
	Status         VideoStatus   `json:"status"`
	Duration       float64       `json:"duration,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Segment is one time-bounded slice of a video transcript. Segments are
// written once during transcript ingest and only removed in bulk.
type Segment struct {
	ID        string  `json:"id"`
	VideoID   string  `json:"video_id"`
	Ordinal   int     `json:"ordinal"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// Source is an ephemeral citation tying an answer to a video segment.
// Text is the user-facing excerpt; Context carries the enriched surrounding
// transcript for the correction model and never leaves the process.
type Source struct {
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	Timestamp  float64 `json:"timestamp"`
	Text       string  `json:"text"`
	URL        string  `json:"url"`
	Context    string  `json:"-"`
}

// Key returns the dedupe identity of a source: video plus whole-second timestamp.
func (s Source) Key() string {
	return fmt.Sprintf("%s@%d", s.VideoID, int(s.Timestamp))
}

// NewSource builds a citation for a segment of the given video, truncating
// the excerpt to 200 characters.
func NewSource(video Video, seg Segment) Source {
	return Source{
		VideoID:    video.ID,
		VideoTitle: video.Title,
		Timestamp:  seg.StartTime,
		Text:       Excerpt(seg.Text),
		URL:        fmt.Sprintf("/videos/%s?t=%d", video.ID, int(seg.StartTime)),
	}
}

// Excerpt truncates segment text for display: 200 characters plus an ellipsis.
func Excerpt(text string) string {
	if len(text) > 200 {
		return text[:200] + "..."
	}
	return text
}

// Conversation is an ordered exchange between one user and the assistant.
type Conversation struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Title          string     `json:"title"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	MessageCount   int        `json:"message_count"`
}

// TitleFromMessage derives a conversation title from its first user message.
func TitleFromMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > 50 {
		return msg[:50] + "..."
	}
	return msg
}

// Message is a single turn in a conversation. Sources is only set for
// assistant messages; an empty list is meaningful (no grounded evidence).
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryEntry is the role/content pair handed to the retrieval engine.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
