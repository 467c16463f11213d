// Package entitle decides what a tenant may do and how much of it.
//
// Entitle is a library, not a service. Import it into the application that
// owns the protected operations. It provides:
//
//   - Per-tenant entitlement snapshots resolved from plan, module and credit state
//   - Quota checks that count live usage at decision time
//   - Add-on module gates with optional per-tier monthly quotas
//   - A two-bucket credit ledger (monthly allowance, then purchased balance)
//   - Fail-closed enforcement: an unreachable store always denies
//   - Plugin hooks for metrics, audit and cross-instance cache invalidation
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/entitle"
//	    "github.com/xraph/entitle/store/postgres"
//	)
//
//	s := postgres.New(db)
//	e := entitle.New(s)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Enforcement
//
// Check a quota before creating a record:
//
//	if err := e.RequireQuota(ctx, catalog.ResourceProduct, tenantID); err != nil {
//	    // entitle.IsDenied(err) for policy denials,
//	    // entitle.IsStoreUnavailable(err) when enforcement could not run.
//	    return err
//	}
//
// Gate a module operation:
//
//	v, err := e.CheckModule(ctx, catalog.ModuleReturnsHub, tenantID)
//	if err != nil || !v.Allowed() {
//	    return errNotAllowed
//	}
//
// Consume credits for a metered operation:
//
//	res, err := e.ConsumeCredits(ctx, 3, tenantID, "ai_description")
//	if err == nil && !res.Success {
//	    // balance too low; nothing was written
//	}
//
// # Caching
//
// Snapshots are cached per tenant for a short TTL (5s by default). Every
// write path invalidates synchronously before returning, and quota counts
// and credit balances are never served from the cache.
//
// # TypeID
//
// Persisted records use TypeID for globally unique, type-safe identifiers:
//
//	sub_01h2xcejqtf2nbrexx3vqjhp41     // Subscription ID
//	msub_01h2xcejqtf2nbrexx3vqjhp41    // Module subscription ID
//	cons_01h455vb4pex5vsknk084sn02q    // Credit consumption ID
//	cgrant_01h455vb4pex5vsknk084sn02q  // Credit grant ID
package entitle
