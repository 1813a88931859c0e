// Package http provides HTTP handlers and middleware for the library
// circulation API.
//
// The router exposes the following endpoints:
//   - POST /loans: borrows a copy. Body: {"member_id","copy_id"}. Returns the
//     created loan and, when the borrow claimed a held copy, the fulfilled
//     reservation.
//   - POST /loans/{id}/return: closes a loan and returns a summary with the
//     overdue flag, any penalty created, and any reservation promoted to the
//     freed copy.
//   - POST /reservations, DELETE /reservations/{id}, GET /reservations/{id},
//     GET /reservations/expired, GET /books/{id}/reservations: reservation
//     queue management. The expired listing is meant for external schedulers.
//   - POST /penalties/{id}/pay, GET /penalties/{id},
//     GET /members/{id}/penalties: the penalty ledger. The member statement
//     includes the unpaid total the borrow workflow gates on.
//   - GET/POST /members, GET/PUT/DELETE /members/{id}: member management.
//   - POST /members/{id}/checkin, POST /members/{id}/checkout,
//     GET /members/{id}/visits: visit tracking.
//   - GET/POST /books, GET/PUT/DELETE /books/{id}, copies under
//     /books/{id}/copies and /copies/{id}: the catalog.
//
// Errors map uniformly: missing resources to 404, circulation rule
// violations to 409 with a stable error_code, validation failures to 422
// with a field map, malformed bodies to 400.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
