package utils

import (
	"golang.org/x/crypto/bcrypt"
)

var bcryptCost = bcrypt.DefaultCost

// ConfigurePasswordCost tunes the bcrypt work factor. Values outside the
// library's supported range are ignored.
func ConfigurePasswordCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		bcryptCost = cost
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
