package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Job state machine: open -> in_progress -> completed,
// open -> cancelled, in_progress -> disputed.
const (
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusDisputed   = "disputed"
	JobStatusCancelled  = "cancelled"
)

const (
	QuoteStatusPending   = "pending"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusRejected  = "rejected"
	QuoteStatusWithdrawn = "withdrawn"
)

const (
	AssignmentStatusUpcoming   = "upcoming"
	AssignmentStatusInProgress = "in_progress"
	AssignmentStatusCompleted  = "completed"
)

var MeetingTypes = []string{"tender_briefing", "site_inspection", "community_meeting", "other"}

// ValidMeetingType reports whether t is one of the recognized meeting types.
func ValidMeetingType(t string) bool {
	for _, m := range MeetingTypes {
		if m == t {
			return true
		}
	}
	return false
}

var jobTransitions = map[string][]string{
	JobStatusOpen:       {JobStatusInProgress, JobStatusCancelled},
	JobStatusInProgress: {JobStatusCompleted, JobStatusDisputed},
}

// CanJobTransition reports whether from -> to is an allowed edge of the job
// state machine. Terminal states have no outgoing edges.
func CanJobTransition(from, to string) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Entity is a client's registered legal/business identity used to post jobs.
type Entity struct {
	ID                 string    `db:"id" json:"id"`
	OwnerID            string    `db:"owner_id" json:"ownerId"`
	Name               string    `db:"name" json:"name" validate:"required,max=100"`
	Type               string    `db:"type" json:"type"`
	Phone              string    `db:"phone" json:"phone" validate:"required"`
	Email              string    `db:"email" json:"email" validate:"required"`
	Address            string    `db:"address" json:"address" validate:"required"`
	RegistrationNumber string    `db:"registration_number" json:"registrationNumber"`
	CipcNumber         string    `db:"cipc_number" json:"cipcNumber"`
	CsdNumber          string    `db:"csd_number" json:"csdNumber"`
	TaxNumber          string    `db:"tax_number" json:"taxNumber"`
	VatNumber          string    `db:"vat_number" json:"vatNumber"`
	IsDefault          bool      `db:"is_default" json:"isDefault"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"-"`
}

type Location struct {
	Address     string    `json:"address"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

type Requirements struct {
	Attire    string   `json:"attire"`
	PPE       bool     `json:"ppe"`
	Tasks     []string `json:"tasks"`
	Documents []string `json:"documents"`
}

type Attachment struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	FileType     string    `json:"fileType"`
	UploadedAt   time.Time `json:"uploadedAt"`
	DownloadURL  string    `json:"downloadUrl"`
}

type Attachments []Attachment

// Job is a meeting-representation task posted by a client.
type Job struct {
	ID               string       `db:"id" json:"id"`
	ClientID         string       `db:"client_id" json:"clientId"`
	SelectedEntityID string       `db:"selected_entity_id" json:"selectedEntityId" validate:"required"`
	Status           string       `db:"status" json:"status" validate:"required,oneof=open in_progress completed disputed cancelled"`
	MeetingType      string       `db:"meeting_type" json:"meetingType" validate:"required,oneof=tender_briefing site_inspection community_meeting other"`
	DateTime         time.Time    `db:"date_time" json:"dateTime"`
	Location         Location     `db:"location" json:"location"`
	Budget           string       `db:"budget" json:"budget"`
	Requirements     Requirements `db:"requirements" json:"requirements"`
	Attachments      Attachments  `db:"attachments" json:"attachments"`
	AdditionalNotes  string       `db:"additional_notes" json:"additionalNotes"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"-"`
}

type Transportation struct {
	Method  string `json:"method"`
	Details string `json:"details"`
}

type EstimatedArrival struct {
	Time           string `json:"time"`
	TravelDuration string `json:"travelDuration"`
	DepartureTime  string `json:"departureTime"`
}

type Availability struct {
	Confirmed       bool   `json:"confirmed"`
	AlternativeDate string `json:"alternativeDate,omitempty"`
}

// Quote is a representative's priced bid to fulfill a Job.
type Quote struct {
	ID                    string           `db:"id" json:"id"`
	RepID                 string           `db:"rep_id" json:"repId"`
	JobID                 string           `db:"job_id" json:"jobId" validate:"required"`
	Amount                float64          `db:"amount" json:"amount" validate:"required,gt=0"`
	Currency              string           `db:"currency" json:"currency"`
	Transportation        Transportation   `db:"transportation" json:"transportation"`
	EstimatedArrival      EstimatedArrival `db:"estimated_arrival" json:"estimatedArrival"`
	Availability          Availability     `db:"availability" json:"availability"`
	SpecialConsiderations pq.StringArray   `db:"special_considerations" json:"specialConsiderations"`
	AdditionalNotes       string           `db:"additional_notes" json:"additionalNotes"`
	QuotedAt              time.Time        `db:"quoted_at" json:"quotedAt"`
	ValidUntil            time.Time        `db:"valid_until" json:"validUntil"`
	Status                string           `db:"status" json:"status" validate:"required,oneof=pending accepted rejected withdrawn"`
	UpdatedAt             time.Time        `db:"updated_at" json:"-"`
}

// Expired reports whether the quote's validity window has lapsed. Expired
// quotes stay pending in storage; the check happens at read and accept time.
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}

type MeetingDetails struct {
	Type     string    `json:"type"`
	DateTime time.Time `json:"dateTime"`
	Location string    `json:"location"`
}

type CompletionReport struct {
	Arrived            bool     `json:"arrived"`
	ArrivalTime        string   `json:"arrivalTime"`
	TasksCompleted     []string `json:"tasksCompleted"`
	Photos             []string `json:"photos"`
	Notes              string   `json:"notes"`
	DocumentsCollected []string `json:"documentsCollected"`
}

// Submitted reports whether the report carries any content. CompletedAt is
// the authoritative null signal; this only guards JSON omission.
func (c CompletionReport) Submitted() bool {
	return c.Arrived || c.Notes != "" || len(c.TasksCompleted) > 0
}

// Assignment is the execution record created once a Quote is accepted.
// Exactly one exists per accepted quote.
type Assignment struct {
	ID               string           `db:"id" json:"id"`
	RepID            string           `db:"rep_id" json:"repId"`
	JobID            string           `db:"job_id" json:"jobId"`
	QuoteID          string           `db:"quote_id" json:"quoteId"`
	ClientID         string           `db:"client_id" json:"clientId"`
	Amount           float64          `db:"amount" json:"amount"`
	Currency         string           `db:"currency" json:"currency"`
	Status           string           `db:"status" json:"status"`
	Transportation   string           `db:"transportation" json:"transportation"`
	MeetingDetails   MeetingDetails   `db:"meeting_details" json:"meetingDetails"`
	AssignedAt       time.Time        `db:"assigned_at" json:"assignedAt"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completedAt"`
	CompletionReport CompletionReport `db:"completion_report" json:"completionReport,omitzero"`
	UpdatedAt        time.Time        `db:"updated_at" json:"-"`
}

// DeriveAssignmentStatus projects the display status from the stored status
// and the meeting time. Only "upcoming" and "completed" are ever persisted;
// "in_progress" exists purely at read time once the meeting time has passed.
func DeriveAssignmentStatus(stored string, meetingTime, now time.Time) string {
	if stored == AssignmentStatusCompleted {
		return AssignmentStatusCompleted
	}
	if now.Before(meetingTime) {
		return AssignmentStatusUpcoming
	}
	return AssignmentStatusInProgress
}

// DerivedStatus is DeriveAssignmentStatus applied to the assignment's own
// meeting snapshot.
func (a *Assignment) DerivedStatus(now time.Time) string {
	return DeriveAssignmentStatus(a.Status, a.MeetingDetails.DateTime, now)
}

// JSONB column support. Composite job/quote/assignment fields are stored as
// jsonb and travel through these Value/Scan pairs.

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", src, dest)
	}
}

func (l Location) Value() (driver.Value, error) { return json.Marshal(l) }
func (l *Location) Scan(src any) error          { return scanJSON(src, l) }

func (r Requirements) Value() (driver.Value, error) { return json.Marshal(r) }
func (r *Requirements) Scan(src any) error          { return scanJSON(src, r) }

func (a Attachments) Value() (driver.Value, error) { return json.Marshal(a) }
func (a *Attachments) Scan(src any) error          { return scanJSON(src, a) }

func (t Transportation) Value() (driver.Value, error) { return json.Marshal(t) }
func (t *Transportation) Scan(src any) error          { return scanJSON(src, t) }

func (e EstimatedArrival) Value() (driver.Value, error) { return json.Marshal(e) }
func (e *EstimatedArrival) Scan(src any) error          { return scanJSON(src, e) }

func (a Availability) Value() (driver.Value, error) { return json.Marshal(a) }
func (a *Availability) Scan(src any) error          { return scanJSON(src, a) }

func (m MeetingDetails) Value() (driver.Value, error) { return json.Marshal(m) }
func (m *MeetingDetails) Scan(src any) error          { return scanJSON(src, m) }

func (c CompletionReport) Value() (driver.Value, error) { return json.Marshal(c) }
func (c *CompletionReport) Scan(src any) error          { return scanJSON(src, c) }
