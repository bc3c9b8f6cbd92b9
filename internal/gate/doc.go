// Package gate holds the availability state of one email field as a single tagged value.
//
// # Transitions
//
//	idle      --Begin-->   checking   (attempts+1, ticket issued)
//	checking  --Resolve--> exists | available  (ticket and email must match)
//	checking  --Fail-->    idle
//	any       --Edited-->  idle       (attempts kept)
//	any       --Reset-->   idle       (attempts zeroed, ticket sequence kept)
//
// A verdict is always bound to the normalized email it was issued for, so a stale
// result can never gate a different address.
//
// # What this package must NOT do
//
//   - Perform the lookup itself or hold locks: callers own scheduling and mutual exclusion.
package gate
