package graphql

import "strings"

// validateRegister возвращает ошибки полей регистрации или nil.
func validateRegister(options RegisterOptions) []*FieldError {
	if !strings.Contains(options.Email, "@") {
		return []*FieldError{{Field: "email", Message: "invalid email"}}
	}
	if len(options.Username) <= 2 {
		return []*FieldError{{Field: "username", Message: "username length must be greater than 2"}}
	}
	if strings.Contains(options.Username, "@") {
		return []*FieldError{{Field: "username", Message: "username cannot include an @ sign"}}
	}
	if len(options.Password) <= 3 {
		return []*FieldError{{Field: "password", Message: "password length must be greater than 3"}}
	}
	return nil
}
