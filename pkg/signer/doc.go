// Package signer issues and verifies tamper-evident tokens. A token is the
// base64url encoded JSON envelope followed by "--" and the hex HMAC-SHA256 of
// the encoded envelope, keyed by a PBKDF2 derivation of the process secret.
//
// Tokens carry a purpose ("signed_params", "sgid") and only verify under the
// purpose they were issued for. Tokens do not expire; callers needing expiry
// enforce it when resolving.
package signer
