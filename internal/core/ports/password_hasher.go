package ports

// PasswordHasher produces and checks salted one-way password digests.
// Hash is non-deterministic across calls; Verify reports whether the
// plaintext could have produced the digest.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}
