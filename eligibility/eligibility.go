// Package eligibility decides whether a donor may attach to a blood request
// right now.
//
// The decision is a pure function of its inputs.  Callers must evaluate it at
// the moment they act on it rather than caching an earlier answer, since the
// cooldown depends on the current time.
package eligibility

import (
	"time"

	"kurudhi-koodai/dbtypes"
)

// DefaultCooldownDays is the minimum number of whole days between two
// donations by the same donor.
const DefaultCooldownDays = 90

type Reason string

const (
	ReasonNone          Reason = ""
	ReasonGroupMismatch Reason = "group-mismatch"
	ReasonCooldown      Reason = "cooldown"
)

// Policy carries the configured eligibility knobs.
type Policy struct {
	CooldownDays int64
}

func DefaultPolicy() Policy {
	return Policy{CooldownDays: DefaultCooldownDays}
}

type Decision struct {
	Eligible bool
	Reason   Reason

	// Only set when Reason is ReasonCooldown.
	CooldownRemainingDays int64
}

// CanDonate applies, in order: the blood-group match (unless the request
// accepts any group), then the cooldown since the donor's last donation.
func CanDonate(donor *dbtypes.Donor, request *dbtypes.Request, policy Policy, now time.Time) Decision {
	if !request.AnyGroupAccepted && donor.BloodGroup != request.BloodGroup {
		return Decision{Reason: ReasonGroupMismatch}
	}

	if donor.LastDonationDate == nil {
		return Decision{Eligible: true}
	}

	daysSince := DaysBetween(*donor.LastDonationDate, now)
	if daysSince >= policy.CooldownDays {
		return Decision{Eligible: true}
	}

	return Decision{
		Reason:                ReasonCooldown,
		CooldownRemainingDays: policy.CooldownDays - daysSince,
	}
}

// DaysBetween returns the number of whole 24-hour periods from "from" to
// "to".  A negative interval, which only a misbehaving clock produces, counts
// as zero days.
func DaysBetween(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / (24 * time.Hour))
}
