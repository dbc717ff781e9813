package validator

import (
	"errors"
	"regexp"
)

var (
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidUsername        = errors.New("invalid username")
	ErrInvalidPassword        = errors.New("invalid password")
	ErrMissingName            = errors.New("name is required")
	ErrInvalidCurrency        = errors.New("invalid currency code")
	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrInvalidCategoryType    = errors.New("invalid category type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

var accountTypes = map[string]struct{}{
	"cash": {}, "card": {}, "deposit": {}, "loan": {}, "bank-account": {},
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateName(name string) error {
	if name == "" {
		return ErrMissingName
	}
	return nil
}

func ValidateCurrency(currency string) error {
	if !currencyRegex.MatchString(currency) {
		return ErrInvalidCurrency
	}
	return nil
}

func ValidateAccountType(accountType string) error {
	if _, ok := accountTypes[accountType]; !ok {
		return ErrInvalidAccountType
	}
	return nil
}

func ValidateCategoryType(categoryType string) error {
	if categoryType != "income" && categoryType != "expense" {
		return ErrInvalidCategoryType
	}
	return nil
}

func ValidateTransactionType(transactionType string) error {
	switch transactionType {
	case "income", "expense", "transfer":
		return nil
	default:
		return ErrInvalidTransactionType
	}
}
