package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a fresh random identifier for any stored record
func GenerateID() string {
	return uuid.New().String()
}
