// Package entitlement derives a user's key quota from external
// membership checks and admin overrides.
package entitlement

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/keyvend/keyvend/internal/metrics"
	"github.com/keyvend/keyvend/internal/model"
)

// MembershipStatus is the state reported by the membership oracle.
type MembershipStatus string

// Statuses mirror the chat platform's member states. Only member,
// administrator and creator grant the community bonus.
const (
	StatusMember        MembershipStatus = "member"
	StatusAdministrator MembershipStatus = "administrator"
	StatusCreator       MembershipStatus = "creator"
	StatusRestricted    MembershipStatus = "restricted"
	StatusLeft          MembershipStatus = "left"
	StatusKicked        MembershipStatus = "kicked"
)

// Counts reports whether the status grants the community bonus.
func (s MembershipStatus) Counts() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	}
	return false
}

// MembershipOracle answers whether a user belongs to a community.
// Implementations must surface timeouts and API errors to the caller
// instead of swallowing them.
type MembershipOracle interface {
	ChatMemberStatus(ctx context.Context, communityID, userID int64) (MembershipStatus, error)
}

const (
	// DefaultBonusPerCommunity is the quota granted per community the
	// user belongs to.
	DefaultBonusPerCommunity = 3
	// BaselineLimit is the single trial entitlement for users with no
	// memberships and no override.
	BaselineLimit = 1
	// checkTimeout bounds one oracle call so a hung check cannot stall
	// the whole computation.
	checkTimeout = 5 * time.Second
)

// Calculator computes key limits.
type Calculator struct {
	oracle      MembershipOracle
	communities []int64
	bonus       int
	logger      *slog.Logger
	metrics     metrics.Recorder
}

// NewCalculator creates a Calculator checking the given communities.
func NewCalculator(oracle MembershipOracle, communities []int64, bonus int, logger *slog.Logger, recorder metrics.Recorder) *Calculator {
	if bonus <= 0 {
		bonus = DefaultBonusPerCommunity
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Calculator{
		oracle:      oracle,
		communities: communities,
		bonus:       bonus,
		logger:      logger.With("component", "entitlement"),
		metrics:     recorder,
	}
}

// ComputeLimit returns the user's effective key limit.
// A manual override wins unconditionally, regardless of membership
// state; otherwise the summed community bonus applies, falling back to
// the baseline of one trial key.
func (c *Calculator) ComputeLimit(ctx context.Context, userID string, record *model.UserRecord) int {
	if record != nil && record.ManualLimit != nil {
		return *record.ManualLimit
	}
	return LimitFromBonus(record, c.MembershipBonus(ctx, userID))
}

// MembershipBonus sums the per-community bonus for every configured
// community the user currently belongs to. Each check is independent:
// a failed check is logged and counted as "not a member" while the
// remaining communities are still evaluated.
func (c *Calculator) MembershipBonus(ctx context.Context, userID string) int {
	if len(c.communities) == 0 {
		return 0
	}

	numericID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		c.logger.Warn("user id is not numeric, skipping membership checks", "user_id", userID)
		return 0
	}

	total := 0
	for _, community := range c.communities {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		status, err := c.oracle.ChatMemberStatus(checkCtx, community, numericID)
		cancel()

		if err != nil {
			c.logger.Warn("membership check failed",
				"community_id", community,
				"user_id", userID,
				"error", err,
			)
			c.metrics.IncMembershipCheck("error")
			continue
		}

		if status.Counts() {
			total += c.bonus
			c.metrics.IncMembershipCheck("member")
		} else {
			c.metrics.IncMembershipCheck("non_member")
		}
	}
	return total
}

// LimitFromBonus resolves the effective limit from a record and a
// precomputed membership bonus. The key issuer uses this inside the
// store transaction so oracle I/O stays outside the lock while the
// manual override is still read from current state.
func LimitFromBonus(record *model.UserRecord, bonus int) int {
	if record != nil && record.ManualLimit != nil {
		return *record.ManualLimit
	}
	if bonus == 0 {
		return BaselineLimit
	}
	return bonus
}
