// Package access holds the access-decision engine: a pure computation from
// a plate identity, a rule snapshot and a point in time to an auditable
// allow/deny/alert outcome. It performs no I/O and creates no alerts; the
// ingestion flow acts on the facts it returns.
package access

import (
	"time"

	"parking-service/internal/domain/parking"
	"parking-service/internal/rules"
)

// Decide evaluates the ordered access policy for a normalized plate. A nil
// identity means the plate is not registered. The ordering is a policy
// invariant: blacklist short-circuits every other attribute on the same
// identity, so a blacklisted plate with a live subscription is still denied.
func Decide(plate string, identity *parking.Identity, snap *rules.Snapshot, now time.Time) parking.DecisionResult {
	facts := map[string]interface{}{"plate": plate}

	if identity == nil {
		return decideUnknown(snap, facts)
	}

	facts["category"] = string(identity.Category)

	if identity.Category == parking.CategoryBlacklist {
		return parking.DecisionResult{
			Outcome:    parking.OutcomeDeny,
			ReasonCode: parking.ReasonBlacklist,
			RuleRef:    "Article 3.2",
			GateAction: parking.GateClose,
			Facts:      facts,
		}
	}

	if identity.Category == parking.CategoryVIP {
		return parking.DecisionResult{
			Outcome:    parking.OutcomeAllow,
			ReasonCode: parking.ReasonVIP,
			RuleRef:    "Article 2.1",
			GateAction: parking.GateOpen,
			Facts:      facts,
		}
	}

	if identity.Category == parking.CategorySubscriber {
		if identity.SubscriptionExpires != nil {
			expiry := *identity.SubscriptionExpires
			facts["subscription_expires"] = expiry.Format("2006-01-02")
			if expiredBeyondGrace(expiry, now, snap) {
				return parking.DecisionResult{
					Outcome:    parking.OutcomeDeny,
					ReasonCode: parking.ReasonExpiredSub,
					RuleRef:    "Article 4.1",
					GateAction: parking.GateClose,
					Facts:      facts,
				}
			}
		}
		return parking.DecisionResult{
			Outcome:    parking.OutcomeAllow,
			ReasonCode: parking.ReasonSubscriber,
			RuleRef:    "Article 2.2",
			GateAction: parking.GateOpen,
			Facts:      facts,
		}
	}

	return parking.DecisionResult{
		Outcome:    parking.OutcomeAllow,
		ReasonCode: parking.ReasonVisitor,
		RuleRef:    "Standard tariff",
		GateAction: parking.GateOpen,
		Facts:      facts,
	}
}

func decideUnknown(snap *rules.Snapshot, facts map[string]interface{}) parking.DecisionResult {
	behavior := snap.GetString("access.unknown_plate_behavior", "allow")
	switch behavior {
	case "deny":
		return parking.DecisionResult{
			Outcome:    parking.OutcomeDeny,
			ReasonCode: parking.ReasonUnknownPlate,
			RuleRef:    "Rule: unknown_plate_behavior",
			GateAction: parking.GateClose,
			Facts:      facts,
		}
	case "alert":
		// Fail-open: the gate works, a human gets notified.
		return parking.DecisionResult{
			Outcome:    parking.OutcomeAlert,
			ReasonCode: parking.ReasonUnknownPlateAlert,
			RuleRef:    "Rule: unknown_plate_behavior",
			GateAction: parking.GateOpen,
			Facts:      facts,
		}
	default:
		return parking.DecisionResult{
			Outcome:    parking.OutcomeAllow,
			ReasonCode: parking.ReasonVisitor,
			RuleRef:    "Standard tariff",
			GateAction: parking.GateOpen,
			Facts:      facts,
		}
	}
}

// expiredBeyondGrace compares at day granularity: the grace rule is stated
// in minutes but the expiry is a date-level attribute, so the minutes
// become a fraction of a day compared against whole days elapsed. An expiry
// earlier the same day is always within grace.
func expiredBeyondGrace(expiry, now time.Time, snap *rules.Snapshot) bool {
	graceMinutes := snap.GetFloat("access.subscriber_grace_minutes", 60)
	graceDays := graceMinutes / (60 * 24)

	expiryDate := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysPast := nowDate.Sub(expiryDate).Hours() / 24

	return daysPast > graceDays
}
