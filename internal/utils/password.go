package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes an operator password with the configured
// cost. The cost comes from BCRYPT_COST so staging can run cheap
// hashes while production pays for strong ones.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// Constant-time comparison is bcrypt's, not ours.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
