package auth

import "golang.org/x/crypto/bcrypt"

// Transaction PINs confirm credit-spending operations. They are stored only
// as bcrypt hashes.

func HashPin(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPin(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
