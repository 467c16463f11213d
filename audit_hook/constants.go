package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionChanged = "subscription.changed"
	ActionModuleActivated     = "module.activated"
	ActionModuleDeactivated   = "module.deactivated"

	// Enforcement actions
	ActionQuotaExceeded = "quota.exceeded"
	ActionModuleDenied  = "module.denied"

	// Credit actions
	ActionCreditsConsumed     = "credits.consumed"
	ActionCreditsInsufficient = "credits.insufficient"
	ActionCreditsGranted      = "credits.granted"

	// Cache actions
	ActionEntitlementsInvalidated = "entitlements.invalidated"

	// Store actions
	ActionStoreFailed = "store.failed"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceModule       = "module"
	ResourceQuota        = "quota"
	ResourceCredits      = "credits"
	ResourceEntitlement  = "entitlement"
	ResourceStore        = "store"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryAccess       = "access"
	CategoryCredits      = "credits"
	CategorySystem       = "system"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
