package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("strongpassword"))
	// Кириллица: 8 рун занимают 16 байт, длина считается в рунах
	assert.NoError(t, ValidatePassword("короткий"))

	err := ValidatePassword("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "обязателен")

	err = ValidatePassword("семь")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "не менее")

	err = ValidatePassword(strings.Repeat("a", MaxPasswordLength+1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "не более")
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("user@example.com"))
	assert.Error(t, ValidateEmail("плохой"))
	assert.Error(t, ValidateEmail("a@b"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateOrderTitle(t *testing.T) {
	assert.NoError(t, ValidateOrderTitle("Ремонт кухни"))
	assert.Error(t, ValidateOrderTitle("ок"))
	assert.Error(t, ValidateOrderTitle(""))
}
