package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinOrderTitleLength       = 3
	MaxOrderTitleLength       = 200
	MinOrderDescriptionLength = 10
	MaxOrderDescriptionLength = 5000
	MinMessageLength          = 1
	MaxMessageLength          = 5000
	MinPasswordLength         = 8
	MaxPasswordLength         = 72 // ограничение bcrypt
)

// ValidatePassword проверяет пароль. Минимальная длина считается в рунах,
// максимальная в байтах из-за ограничения bcrypt.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("пароль обязателен")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("пароль должен быть не более %d символов", MaxPasswordLength)
	}
	return nil
}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !strings.Contains(domainPart, ".") {
		return fmt.Errorf("доменная часть email должна содержать точку")
	}

	// Проверка на валидные символы в локальной части
	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	// Проверка на валидные символы в доменной части
	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateOrderTitle проверяет заголовок заказа.
func ValidateOrderTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок заказа обязателен")
	}

	title = strings.TrimSpace(title)

	if err := ValidateLength("заголовок заказа", title, MinOrderTitleLength, MaxOrderTitleLength); err != nil {
		return err
	}

	return nil
}

// ValidateOrderDescription проверяет описание заказа.
func ValidateOrderDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание заказа обязательно")
	}

	description = strings.TrimSpace(description)

	if err := ValidateLength("описание заказа", description, MinOrderDescriptionLength, MaxOrderDescriptionLength); err != nil {
		return err
	}

	return nil
}

// ValidateMessageContent проверяет текст отклика.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}

	content = strings.TrimSpace(content)

	if err := ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength); err != nil {
		return err
	}

	return nil
}
