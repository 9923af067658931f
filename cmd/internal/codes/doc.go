// Package codes holds short-lived, single-use login codes for the social
// (PKCE) flow in a TTL key-value store.
//
// Consumption is atomic: the challenge comparison and the delete run inside
// one Redis script, so two concurrent presentations of the same code yield
// exactly one success. A failed verification leaves the code intact.
package codes
