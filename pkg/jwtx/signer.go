package jwtx

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error

	// verificationKey is the key a Verifier checks signatures with.
	verificationKey() any
}

// NewSignerHS256 creates an HMAC-SHA256 signer from a shared secret of at
// least MinHMACSecretSize bytes.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	return newHS256Signer(kid, secret)
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	return newEdDSASigner(kid, pemKey)
}
