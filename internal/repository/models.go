package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"parking-service/internal/domain/parking"
)

type Vehicle struct {
	ID                  string                  `gorm:"type:uuid;primaryKey"`
	Plate               string                  `gorm:"not null"`
	PlateNormalized     string                  `gorm:"not null;uniqueIndex"`
	Category            parking.VehicleCategory `gorm:"not null;default:visitor"`
	VehicleType         parking.VehicleType     `gorm:"not null;default:car"`
	OwnerName           *string
	OwnerPhone          *string
	OwnerEmail          *string
	SubscriptionExpires *time.Time
	Notes               *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (v *Vehicle) BeforeCreate(_ *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// Identity projects the fields the access engine decides on.
func (v *Vehicle) Identity() *parking.Identity {
	return &parking.Identity{
		Plate:               v.PlateNormalized,
		Category:            v.Category,
		VehicleType:         v.VehicleType,
		SubscriptionExpires: v.SubscriptionExpires,
	}
}

type Rule struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	Key         string         `gorm:"not null;uniqueIndex"`
	Value       datatypes.JSON `gorm:"not null"`
	Description *string
	UpdatedBy   *string
	UpdatedAt   time.Time
}

func (r *Rule) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type RuleHistory struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	RuleKey   string         `gorm:"not null;index"`
	OldValue  datatypes.JSON
	NewValue  datatypes.JSON `gorm:"not null"`
	ChangedBy *string
	ChangedAt time.Time
}

func (RuleHistory) TableName() string { return "rule_history" }

func (h *RuleHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

type Tariff struct {
	ID                string         `gorm:"type:uuid;primaryKey"`
	Name              string         `gorm:"not null"`
	VehicleTypes      datatypes.JSON `gorm:"not null"`
	FirstHourTND      float64        `gorm:"column:first_hour_tnd;not null;default:2.0"`
	ExtraHourTND      float64        `gorm:"column:extra_hour_tnd;not null;default:1.0"`
	DailyMaxTND       float64        `gorm:"column:daily_max_tnd;not null;default:20.0"`
	NightMultiplier   float64        `gorm:"not null;default:1.5"`
	NightStart        string         `gorm:"not null;default:'22:00'"`
	NightEnd          string         `gorm:"not null;default:'06:00'"`
	WeekendMultiplier float64        `gorm:"not null;default:1.2"`
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	Active            bool `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t *Tariff) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Event struct {
	ID            string            `gorm:"type:uuid;primaryKey"`
	Plate         string            `gorm:"not null;index"`
	VehicleID     *string           `gorm:"type:uuid"`
	GateID        string            `gorm:"not null"`
	CameraID      *string
	EventType     parking.EventType `gorm:"not null"`
	OCRConfidence *float64          `gorm:"column:ocr_confidence"`
	RawPlate      *string
	Decision      *parking.Outcome
	RuleApplied   *string
	ImageURL      *string
	Timestamp     time.Time `gorm:"not null;index"`
}

func (e *Event) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type Decision struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	EventID      *string         `gorm:"type:uuid"`
	Plate        string          `gorm:"not null;index"`
	Outcome      parking.Outcome `gorm:"not null"`
	ReasonCode   string          `gorm:"not null"`
	RuleRef      *string
	RuleSnapshot datatypes.JSON
	Facts        datatypes.JSON
	GateAction   parking.GateAction
	Timestamp    time.Time `gorm:"not null;index"`
}

func (d *Decision) BeforeCreate(_ *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type Session struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	Plate           string    `gorm:"not null;index"`
	VehicleID       *string   `gorm:"type:uuid"`
	EntryEventID    *string   `gorm:"type:uuid"`
	ExitEventID     *string   `gorm:"type:uuid"`
	EntryTime       time.Time `gorm:"not null;index"`
	ExitTime        *time.Time
	DurationMinutes *int
	TariffID        *string `gorm:"type:uuid"`
	TariffSnapshot  datatypes.JSON
	AmountDue       *float64
	PaymentStatus   parking.PaymentStatus `gorm:"not null;default:pending"`
	GateEntry       *string
	GateExit        *string
	Notes           *string
	CreatedAt       time.Time
}

func (s *Session) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Closed reports whether the session has reached its terminal state.
func (s *Session) Closed() bool { return s.ExitTime != nil }

type Alert struct {
	ID         string                `gorm:"type:uuid;primaryKey"`
	AlertType  parking.AlertType     `gorm:"not null;index"`
	Severity   parking.AlertSeverity `gorm:"not null"`
	Plate      *string               `gorm:"index"`
	GateID     *string
	Message    string `gorm:"not null"`
	Resolved   bool   `gorm:"not null;default:false"`
	ResolvedBy *string
	ResolvedAt *time.Time
	CreatedAt  time.Time `gorm:"index"`
}

func (a *Alert) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type User struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	Username       string `gorm:"not null;uniqueIndex"`
	FullName       string `gorm:"not null"`
	Email          string `gorm:"not null;uniqueIndex"`
	HashedPassword string `gorm:"not null"`
	Role           string `gorm:"not null;default:staff"`
	Active         bool   `gorm:"not null;default:true"`
	CreatedAt      time.Time
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
