package parking

import (
	"time"
)

type VehicleCategory string

const (
	CategoryVisitor    VehicleCategory = "visitor"
	CategorySubscriber VehicleCategory = "subscriber"
	CategoryVIP        VehicleCategory = "vip"
	CategoryBlacklist  VehicleCategory = "blacklist"
)

func (c VehicleCategory) Valid() bool {
	switch c {
	case CategoryVisitor, CategorySubscriber, CategoryVIP, CategoryBlacklist:
		return true
	}
	return false
}

type VehicleType string

const (
	TypeCar        VehicleType = "car"
	TypeTruck      VehicleType = "truck"
	TypeMotorcycle VehicleType = "motorcycle"
	TypeBus        VehicleType = "bus"
)

func (t VehicleType) Valid() bool {
	switch t {
	case TypeCar, TypeTruck, TypeMotorcycle, TypeBus:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeDeny  Outcome = "deny"
	OutcomeAlert Outcome = "alert"
)

type GateAction string

const (
	GateOpen  GateAction = "open"
	GateClose GateAction = "close"
)

type EventType string

const (
	EventEntry     EventType = "entry"
	EventExit      EventType = "exit"
	EventDetection EventType = "detection"
)

func (e EventType) Valid() bool {
	switch e {
	case EventEntry, EventExit, EventDetection:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentDisputed PaymentStatus = "disputed"
	PaymentWaived   PaymentStatus = "waived"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentDisputed, PaymentWaived:
		return true
	}
	return false
}

type AlertType string

const (
	AlertBlacklist      AlertType = "BLACKLIST"
	AlertOverstay       AlertType = "OVERSTAY"
	AlertDuplicatePlate AlertType = "DUPLICATE_PLATE"
	AlertLowConfidence  AlertType = "LOW_CONFIDENCE"
	AlertFraud          AlertType = "FRAUD"
	AlertRevenueAnomaly AlertType = "REVENUE_ANOMALY"
	AlertPlateMismatch  AlertType = "PLATE_MISMATCH"
)

type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
)

// Reason codes attached to access decisions.
const (
	ReasonBlacklist         = "BLACKLIST"
	ReasonVIP               = "VIP"
	ReasonSubscriber        = "SUBSCRIBER"
	ReasonExpiredSub        = "EXPIRED_SUBSCRIPTION"
	ReasonVisitor           = "VISITOR"
	ReasonUnknownPlate      = "UNKNOWN_PLATE"
	ReasonUnknownPlateAlert = "UNKNOWN_PLATE_ALERT"
)

// Identity is the registered-vehicle view the access engine decides on.
// A nil *Identity means the plate is not registered.
type Identity struct {
	Plate               string
	Category            VehicleCategory
	VehicleType         VehicleType
	SubscriptionExpires *time.Time
}

// SightingPayload is what the vision pipeline posts for every recognized plate.
type SightingPayload struct {
	Plate       string      `json:"plate"`
	RawPlate    string      `json:"raw_plate,omitempty"`
	Confidence  float64     `json:"confidence"`
	CameraID    string      `json:"camera_id,omitempty"`
	GateID      string      `json:"gate_id"`
	VehicleType VehicleType `json:"vehicle_type"`
	EventType   EventType   `json:"event_type"`
	ImageBase64 string      `json:"image_base64,omitempty"`
	EventTime   time.Time   `json:"event_time"`
}

// DecisionResult is the full output of the access engine. It is persisted
// verbatim as the decision's rule_snapshot, so every field is part of the
// audit contract.
type DecisionResult struct {
	Outcome    Outcome                `json:"decision"`
	ReasonCode string                 `json:"reason_code"`
	RuleRef    string                 `json:"rule_ref"`
	GateAction GateAction             `json:"gate_action"`
	Facts      map[string]interface{} `json:"facts"`
}

// BillingResult is the full output of one tariff calculation. It is frozen
// into the session's tariff_snapshot at close time.
type BillingResult struct {
	Amount          float64 `json:"amount"`
	DurationMinutes int     `json:"duration_minutes"`
	TariffName      string  `json:"tariff_name,omitempty"`
	TariffID        string  `json:"tariff_id,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// SightingResult is returned to the vision pipeline.
type SightingResult struct {
	Decision   Outcome    `json:"decision"`
	ReasonCode string     `json:"reason"`
	GateAction GateAction `json:"gate_action"`
	SessionID  string     `json:"session_id,omitempty"`
	EventID    string     `json:"event_id"`
}
