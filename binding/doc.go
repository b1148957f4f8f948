// Package binding shows the cell package in its intended habitat: backing
// storage for scripted object instances that can call back into themselves.
//
// Each instance owns a Storage, which pairs a blocking cell with an identity
// and a lifecycle. A Registry maps instance IDs to their storage and offers
// call helpers that take a borrow, run a function against the value, and
// release the borrow afterwards. Reentrant calls go through Storage.Reenter,
// which parks the caller's exclusive borrow for the duration of the nested
// call.
package binding
