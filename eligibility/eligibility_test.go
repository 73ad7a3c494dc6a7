package eligibility

import (
	"testing"
	"time"

	"kurudhi-koodai/dbtypes"

	"github.com/google/go-cmp/cmp"
)

var now = time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)

func daysAgo(days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestCanDonate(t *testing.T) {
	policy := Policy{CooldownDays: 90}

	testCases := []struct {
		desc    string
		donor   *dbtypes.Donor
		request *dbtypes.Request
		want    Decision
	}{
		{
			desc:    "never donated, matching group",
			donor:   &dbtypes.Donor{BloodGroup: "O+"},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Eligible: true},
		},
		{
			desc:    "group mismatch",
			donor:   &dbtypes.Donor{BloodGroup: "A+"},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Reason: ReasonGroupMismatch},
		},
		{
			desc:    "group mismatch takes precedence over cooldown",
			donor:   &dbtypes.Donor{BloodGroup: "A+", LastDonationDate: daysAgo(1)},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Reason: ReasonGroupMismatch},
		},
		{
			desc:    "any group accepted",
			donor:   &dbtypes.Donor{BloodGroup: "AB-"},
			request: &dbtypes.Request{BloodGroup: "O+", AnyGroupAccepted: true},
			want:    Decision{Eligible: true},
		},
		{
			desc:    "exactly at cooldown boundary",
			donor:   &dbtypes.Donor{BloodGroup: "O+", LastDonationDate: daysAgo(90)},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Eligible: true},
		},
		{
			desc:    "one day short of cooldown",
			donor:   &dbtypes.Donor{BloodGroup: "O+", LastDonationDate: daysAgo(89)},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Reason: ReasonCooldown, CooldownRemainingDays: 1},
		},
		{
			desc:    "donated today",
			donor:   &dbtypes.Donor{BloodGroup: "O+", LastDonationDate: daysAgo(0)},
			request: &dbtypes.Request{BloodGroup: "O+"},
			want:    Decision{Reason: ReasonCooldown, CooldownRemainingDays: 90},
		},
		{
			desc:    "any group still subject to cooldown",
			donor:   &dbtypes.Donor{BloodGroup: "B-", LastDonationDate: daysAgo(30)},
			request: &dbtypes.Request{BloodGroup: "O+", AnyGroupAccepted: true},
			want:    Decision{Reason: ReasonCooldown, CooldownRemainingDays: 60},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := CanDonate(tc.donor, tc.request, policy, now)
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Bad decision; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestCanDonateRepeatable(t *testing.T) {
	donor := &dbtypes.Donor{BloodGroup: "O+", LastDonationDate: daysAgo(45)}
	request := &dbtypes.Request{BloodGroup: "O+"}

	first := CanDonate(donor, request, DefaultPolicy(), now)
	for i := 0; i < 3; i++ {
		if got := CanDonate(donor, request, DefaultPolicy(), now); got != first {
			t.Fatalf("CanDonate not stable across calls; got %+v, want %+v", got, first)
		}
	}
}

func TestDaysBetweenTruncates(t *testing.T) {
	from := now.Add(-47 * time.Hour)
	if got := DaysBetween(from, now); got != 1 {
		t.Errorf("Bad day count; got %d, want 1", got)
	}

	if got := DaysBetween(now.Add(time.Hour), now); got != 0 {
		t.Errorf("Negative interval should count as zero days; got %d", got)
	}
}
