// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level attached to a user account.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
	RoleDriver  Role = "driver"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleDriver:
		return true
	}
	return false
}

// ReportKind tags the two report families (feedback vs. lost/found items).
type ReportKind string

const (
	KindFeedback ReportKind = "feedback"
	KindLost     ReportKind = "lost"
	KindFound    ReportKind = "found"
)

// ValidKind reports whether k is a known report kind.
func ValidKind(k ReportKind) bool {
	switch k {
	case KindFeedback, KindLost, KindFound:
		return true
	}
	return false
}

// Status values for feedback reports.
const (
	StatusPending    = "Pending"
	StatusInProgress = "InProgress"
	StatusClosed     = "Closed"
)

// Status values for found items. Lost items carry no status machine;
// the reporter deletes the item once recovered.
const (
	StatusUnclaimed = "unclaimed"
	StatusClaimed   = "claimed"
)

// Bus status values for the directory.
const (
	BusOnRoute     = "On Route"
	BusIdle        = "Idle"
	BusMaintenance = "Maintenance"
)

// User is an account in the directory. PasswordHash is never serialized.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	Role          Role      `json:"role" db:"role"`
	Identifier    string    `json:"identifier" db:"identifier"` // roll number or staff id
	RouteNo       string    `json:"routeNo" db:"route_no"`
	BoardingPoint string    `json:"boardingPoint" db:"boarding_point"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// AttachmentRef links an uploaded blob to a report or conversation entry.
type AttachmentRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// FeedbackDetails holds the sub-ratings captured for feedback reports.
type FeedbackDetails struct {
	Punctuality    int `json:"punctuality"`
	DriverBehavior int `json:"driverBehavior"`
	Cleanliness    int `json:"cleanliness"`
}

// Resolution records how and by whom a report was closed.
type Resolution struct {
	Text       string    `json:"text"`
	ResolvedBy string    `json:"resolvedBy"`
	ResolvedOn time.Time `json:"resolvedOn"`
}

// ConversationEntry is one message in a report's thread. The thread is
// append-only: entries are never edited or removed.
type ConversationEntry struct {
	AuthorName string         `json:"authorName"`
	Message    string         `json:"message"`
	Attachment *AttachmentRef `json:"attachment,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Report is the umbrella entity for feedback submissions and lost/found
// items, distinguished by Kind.
type Report struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Seq           int64               `json:"-" db:"seq"` // creation sequence, listing tie-break
	Kind          ReportKind          `json:"kind" db:"kind"`
	AuthorID      uuid.UUID           `json:"authorId" db:"author_id"`
	AuthorName    string              `json:"authorName" db:"author_name"`
	Route         string              `json:"route" db:"route"`
	BusNo         string              `json:"busNo,omitempty" db:"bus_no"`
	IssueCategory string              `json:"issueCategory,omitempty" db:"issue_category"`
	Item          string              `json:"item,omitempty" db:"item"`
	Description   string              `json:"description" db:"description"`
	Details       *FeedbackDetails    `json:"details,omitempty" db:"details"`
	Attachments   []AttachmentRef     `json:"attachments" db:"attachments"`
	Status        string              `json:"status,omitempty" db:"status"`
	SubmittedOn   time.Time           `json:"submittedOn" db:"submitted_on"`
	Resolution    *Resolution         `json:"resolution,omitempty" db:"resolution"`
	Conversation  []ConversationEntry `json:"conversation" db:"conversation"`
}

// BusRoute is directory reference data: a named route with its scheduled
// stops and the buses assigned to it.
type BusRoute struct {
	Name     string            `json:"name" db:"name"`
	Stops    map[string]string `json:"stops" db:"stops"` // stop name -> scheduled time
	Capacity int               `json:"capacity" db:"capacity"`
	Buses    []string          `json:"buses" db:"buses"`
}

// Bus is directory reference data for a single vehicle.
type Bus struct {
	BusNo    string `json:"busNo" db:"bus_no"`
	Route    string `json:"route" db:"route"`
	Capacity int    `json:"capacity" db:"capacity"`
	Driver   string `json:"driver,omitempty" db:"driver"`
	Status   string `json:"status" db:"status"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          Role   `json:"role,omitempty"`
	Identifier    string `json:"identifier,omitempty"`
	RouteNo       string `json:"routeNo,omitempty"`
	BoardingPoint string `json:"boardingPoint,omitempty"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token plus a sanitized user summary.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// CreateReportRequest is the body for POST /reports.
type CreateReportRequest struct {
	Kind          ReportKind       `json:"kind"`
	Route         string           `json:"route"`
	BusNo         string           `json:"busNo,omitempty"`
	IssueCategory string           `json:"issueCategory,omitempty"`
	Item          string           `json:"item,omitempty"`
	Description   string           `json:"description"`
	Details       *FeedbackDetails `json:"details,omitempty"`
	Attachments   []AttachmentRef  `json:"attachments,omitempty"`
	Status        string           `json:"status,omitempty"` // found items only; defaults to unclaimed
}

// UpdateStatusRequest is the body for PATCH /reports/{id}/status.
type UpdateStatusRequest struct {
	Status         string `json:"status"`
	ResolutionNote string `json:"resolutionNote,omitempty"`
}

// ConversationRequest is the body for POST /reports/{id}/conversation.
type ConversationRequest struct {
	Message    string         `json:"message"`
	Attachment *AttachmentRef `json:"attachment,omitempty"`
}

// ImportUserRow is one row of a bulk user import.
type ImportUserRow struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          Role   `json:"role,omitempty"`
	Identifier    string `json:"identifier,omitempty"`
	RouteNo       string `json:"routeNo,omitempty"`
	BoardingPoint string `json:"boardingPoint,omitempty"`
}

// ImportFailure explains why a single import row was rejected.
type ImportFailure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// ImportResult is the partial-success summary of a bulk import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Failures []ImportFailure `json:"failures"`
}

// UploadedAttachment is the response for POST /attachments.
type UploadedAttachment struct {
	ID            uuid.UUID `json:"id"`
	URL           string    `json:"url"`
	SanitizedName string    `json:"sanitizedName"`
}

// HealthStatus represents the server health check response.
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}
