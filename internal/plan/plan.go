package plan

import (
	"chat-widget-backend/internal/env"
	"chat-widget-backend/internal/model"
	"strings"
	"time"
)

const (
	HistoryDepthHigh = 50
	HistoryDepthMid  = 20
	HistoryDepthFree = 5

	FreeTierDelay = 3000 * time.Millisecond
)

type Tier string

const (
	TierPremiumHigh Tier = "premium_high"
	TierPremiumMid  Tier = "premium_mid"
	TierBudget      Tier = "budget"
)

type Policy struct {
	Tier         Tier
	Provider     string
	Model        string
	HistoryDepth int
	Delay        time.Duration
}

// DelayFor returns the artificial latency to apply. Requests without a
// durable session never wait.
func (p Policy) DelayFor(hasSession bool) time.Duration {
	if !hasSession {
		return 0
	}
	return p.Delay
}

type Resolver struct {
	premiumProvider string
	premiumHigh     string
	premiumMid      string
	budgetProvider  string
	budgetModel     string
}

func NewResolver(cfg env.TierConfig) Resolver {
	r := DefaultResolver()
	if cfg.PremiumProvider != "" {
		r.premiumProvider = strings.ToLower(strings.TrimSpace(cfg.PremiumProvider))
	}
	if cfg.PremiumHighModel != "" {
		r.premiumHigh = cfg.PremiumHighModel
	}
	if cfg.PremiumMidModel != "" {
		r.premiumMid = cfg.PremiumMidModel
	}
	if cfg.BudgetProvider != "" {
		r.budgetProvider = strings.ToLower(strings.TrimSpace(cfg.BudgetProvider))
	}
	if cfg.BudgetModel != "" {
		r.budgetModel = cfg.BudgetModel
	}
	return r
}

func DefaultResolver() Resolver {
	return Resolver{
		premiumProvider: "openai",
		premiumHigh:     "gpt-4o",
		premiumMid:      "gpt-4o-mini",
		budgetProvider:  "gemini",
		budgetModel:     "gemini-2.0-flash-lite",
	}
}

// Resolve maps a billing plan and requester role to a policy. Unknown and
// empty plans get the free tier.
func (r Resolver) Resolve(plan, role string) Policy {
	plan = strings.ToLower(strings.TrimSpace(plan))
	role = strings.ToLower(strings.TrimSpace(role))

	switch {
	case role == model.RoleAdmin, plan == model.PlanBusiness:
		return Policy{
			Tier:         TierPremiumHigh,
			Provider:     r.premiumProvider,
			Model:        r.premiumHigh,
			HistoryDepth: HistoryDepthHigh,
		}
	case plan == model.PlanPro, plan == model.PlanPremium, plan == model.PlanStarter:
		return Policy{
			Tier:         TierPremiumMid,
			Provider:     r.premiumProvider,
			Model:        r.premiumMid,
			HistoryDepth: HistoryDepthMid,
		}
	default:
		return Policy{
			Tier:         TierBudget,
			Provider:     r.budgetProvider,
			Model:        r.budgetModel,
			HistoryDepth: HistoryDepthFree,
			Delay:        FreeTierDelay,
		}
	}
}
