package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sadopc/sitelog/internal/window"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleChecker Role = "checker"
	RoleOwner   Role = "owner"
	RoleLeader  Role = "leader"
)

// Roles lists every role in display order.
var Roles = []Role{RoleAdmin, RoleChecker, RoleOwner, RoleLeader}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleChecker, RoleOwner, RoleLeader:
		return true
	}
	return false
}

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRejected PaymentStatus = "rejected"
)

type PurposeType string

const (
	PurposeFood    PurposeType = "food"
	PurposeFuel    PurposeType = "fuel"
	PurposeLabour  PurposeType = "labour"
	PurposeVehicle PurposeType = "vehicle"
	PurposeWater   PurposeType = "water"
	PurposeOther   PurposeType = "other"
)

func (p PurposeType) Valid() bool {
	switch p {
	case PurposeFood, PurposeFuel, PurposeLabour, PurposeVehicle, PurposeWater, PurposeOther:
		return true
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CredentialHash string    `json:"credentialHash"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Project struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	LeaderID          string         `json:"leaderId"`
	Workers           int            `json:"workers"`
	TotalWork         float64        `json:"totalWork"`
	CompletedWork     float64        `json:"completedWork"`
	Status            ProjectStatus  `json:"status"`
	UpdateTimeWindow  *window.Window `json:"updateTimeWindow,omitempty"`
	PaymentTimeWindow *window.Window `json:"paymentTimeWindow,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`

	// Version is the store's document version, filled in on read.
	Version int64 `json:"-"`
}

// Completed reports whether the recorded work has reached the planned total.
func (p *Project) Completed() bool {
	return p.CompletedWork >= p.TotalWork
}

// StatusFor returns the status a project with the given work totals has.
func StatusFor(completed, total float64) ProjectStatus {
	if completed >= total {
		return ProjectCompleted
	}
	return ProjectActive
}

// Progress returns completed work as a fraction of total work, capped at 1.
func (p *Project) Progress() float64 {
	if p.TotalWork <= 0 {
		return 0
	}
	return min(p.CompletedWork/p.TotalWork, 1)
}

type ProgressUpdate struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	LeaderID      string    `json:"leaderId"`
	Date          time.Time `json:"date"`
	CompletedWork float64   `json:"completedWork"`
	TimeTaken     float64   `json:"timeTaken"` // hours
	Location      *Location `json:"location,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Attachment struct {
	Data        []byte    `json:"binaryData"`
	ContentType string    `json:"contentType"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CapturedAt  time.Time `json:"capturedAt"`
	Location    *Location `json:"location,omitempty"`
}

type PaymentPurpose struct {
	Type    PurposeType     `json:"type"`
	Amount  decimal.Decimal `json:"amount"`
	Images  []Attachment    `json:"images"`
	Remarks string          `json:"remarks,omitempty"`
}

type PaymentRequest struct {
	ID               string           `json:"id"`
	ProjectID        string           `json:"projectId"`
	ProgressUpdateID string           `json:"progressUpdateId"`
	LeaderID         string           `json:"leaderId"`
	Date             time.Time        `json:"date"`
	Purposes         []PaymentPurpose `json:"purposes"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Status           PaymentStatus    `json:"status"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

type Vehicle struct {
	ID           string    `json:"id"`
	Model        string    `json:"model"`
	Registration string    `json:"registration"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Driver struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	License   string    `json:"license"`
	VehicleID string    `json:"vehicleId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (*User) DocType() DocType           { return TypeUser }
func (*Project) DocType() DocType        { return TypeProject }
func (*ProgressUpdate) DocType() DocType { return TypeProgress }
func (*PaymentRequest) DocType() DocType { return TypePayment }
func (*Vehicle) DocType() DocType        { return TypeVehicle }
func (*Driver) DocType() DocType         { return TypeDriver }

func (u *User) DocKey() string           { return UserKey(u.Email) }
func (p *Project) DocKey() string        { return ProjectKey(p.ID) }
func (p *ProgressUpdate) DocKey() string { return ProgressKey(p.ID) }
func (p *PaymentRequest) DocKey() string { return PaymentKey(p.ID) }
func (v *Vehicle) DocKey() string        { return VehicleKey(v.ID) }
func (d *Driver) DocKey() string         { return DriverKey(d.ID) }

func (p *Project) setVersion(v int64) { p.Version = v }
