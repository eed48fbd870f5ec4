// Package enroll implements self-service student registration.
//
// Register validates the submitted Profile with ozzo-validation (address,
// name and email are required), canonicalises the wallet address and asks
// the store to allocate the next sequential student id and insert the
// registration as pending in one step. New registrations are never
// approved; approval happens out of band through the admin service.
//
// Errors:
//
//   - ErrInvalidProfile: missing or malformed fields
//   - ErrConflict: the address already registered, whatever its status
//   - ErrStoreUnavailable: backend failure
package enroll
