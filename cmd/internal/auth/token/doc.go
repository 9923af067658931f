// Package token mints and verifies the signed access and refresh tokens.
//
// Access and refresh tokens are signed with distinct secrets so a leaked
// token of one class can never be replayed as the other.
package token
