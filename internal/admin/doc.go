// Package admin provides the operator-side operations of the gateway.
//
// The gateway itself only reads approval state. Changing it happens here,
// driven by the oneblock-admin CLI:
//
//   - ListRegistrations: list registrations, optionally by status
//   - Approve / Reject: pending -> approved / rejected (nothing else)
//   - AddStaff / ListStaff: provision teacher and admin wallets
//   - AuditLog: read back who changed what
//
// Every successful mutation appends an audit entry naming the actor.
// Approval changes apply to tokens minted afterwards; tokens already issued
// keep the snapshot they were minted with until they expire.
//
// # Usage
//
//	svc := admin.NewService(store, logger)
//	err := svc.Approve(ctx, "ops@oneblock", "0xabc...")
package admin
