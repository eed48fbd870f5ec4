// Package identity resolves a verified wallet address to a role.
//
// Resolution consults staff records first, then student registrations:
//
//   - staff record present: OutcomeStaff, the staff role, subject = staff id
//   - registration approved: OutcomeStudent, role "student", subject = student id
//   - registration pending: OutcomePending, role "pending", no subject
//   - registration rejected: OutcomeRejected (not issuable)
//   - nothing: OutcomeUnknown (not issuable)
//
// Any registration status other than approved or rejected is treated as
// pending, so a non-approved record can never resolve to a student.
package identity
