package models

import "time"

// UserRole is the application-level role of an account.
type UserRole string

const (
	UserRoleNormal UserRole = "normal"
	UserRoleAdmin  UserRole = "admin"
)

// UserStatus tracks the account lifecycle. Accounts are never hard-deleted.
type UserStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusVerified  UserStatus = "verified"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// AppUser represents a persistent identity record, keyed by email,
// independent of the external identity provider.
type AppUser struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Visibility controls who can see a trip.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// Trip is a plan owned by one user with collaborators, days and items.
type Trip struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Title            string     `json:"title"`
	Description      *string    `json:"description,omitempty"`
	MainCity         *string    `json:"main_city,omitempty"`
	MainCountry      *string    `json:"main_country,omitempty"`
	TravelType       *string    `json:"travel_type,omitempty"`
	Visibility       Visibility `json:"visibility"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	IsDemo           bool       `json:"is_demo"`
	IsFlagged        bool       `json:"is_flagged"`
	ModerationStatus *string    `json:"moderation_status,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TripDay is a single day inside a trip itinerary.
type TripDay struct {
	ID       string     `json:"id"`
	TripID   string     `json:"trip_id"`
	DayIndex int        `json:"day_index"`
	Date     *time.Time `json:"date,omitempty"`
	Note     *string    `json:"note,omitempty"`
}

// ItineraryItem is an activity, stay or transfer inside a trip,
// optionally attached to a day.
type ItineraryItem struct {
	ID               string   `json:"id"`
	TripID           string   `json:"trip_id"`
	DayID            *string  `json:"day_id,omitempty"`
	Title            string   `json:"title"`
	ItemType         string   `json:"item_type"`
	SortOrder        int      `json:"sort_order"`
	StartTime        *string  `json:"start_time,omitempty"`
	EndTime          *string  `json:"end_time,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	DestinationID    *string  `json:"destination_id,omitempty"`
	CostAmount       *float64 `json:"cost_amount,omitempty"`
	CostCurrency     *string  `json:"cost_currency,omitempty"`
	BookingReference string   `json:"booking_reference"`
}

// CollaboratorRole is the per-trip role of a collaborator.
type CollaboratorRole string

const (
	CollaboratorRoleOwner  CollaboratorRole = "owner"
	CollaboratorRoleEditor CollaboratorRole = "editor"
	CollaboratorRoleViewer CollaboratorRole = "viewer"
)

// CollaboratorStatus tracks the invitation lifecycle. A pending invitation
// and an accepted membership are the same row in different states; there is
// no backward transition from active.
type CollaboratorStatus string

const (
	CollaboratorStatusInvited CollaboratorStatus = "invited"
	CollaboratorStatusActive  CollaboratorStatus = "active"
)

// TripCollaborator relates a trip to a user or an invited email.
type TripCollaborator struct {
	ID           string             `json:"id"`
	TripID       string             `json:"trip_id"`
	UserID       *string            `json:"user_id,omitempty"`
	InvitedEmail *string            `json:"invited_email,omitempty"`
	Role         CollaboratorRole   `json:"role"`
	Status       CollaboratorStatus `json:"status"`
	InviteToken  *string            `json:"invite_token,omitempty"`
	InvitedAt    time.Time          `json:"invited_at"`
	AcceptedAt   *time.Time         `json:"accepted_at,omitempty"`
}

// SharePermission is what a share link grants.
type SharePermission string

const (
	SharePermissionView SharePermission = "view"
	SharePermissionEdit SharePermission = "edit"
)

// TripShareLink is a revocable public token granting view or edit access
// to a trip without enrolling a collaborator.
type TripShareLink struct {
	ID         string          `json:"id"`
	TripID     string          `json:"trip_id"`
	Token      string          `json:"token"`
	Permission SharePermission `json:"permission"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CollaboratorSummary is the reduced collaborator view embedded in trip state.
type CollaboratorSummary struct {
	UserID *string            `json:"user_id,omitempty"`
	Email  string             `json:"email"`
	Role   CollaboratorRole   `json:"role"`
	Status CollaboratorStatus `json:"status"`
}

// TripDayState is a day together with its items.
type TripDayState struct {
	TripDay
	Items []ItineraryItem `json:"items"`
}

// TripState is the full canonical trip returned by the sync endpoint.
type TripState struct {
	Trip            Trip                  `json:"trip"`
	Days            []TripDayState        `json:"days"`
	UnassignedItems []ItineraryItem       `json:"unassigned_items"`
	Collaborators   []CollaboratorSummary `json:"collaborators"`
}
