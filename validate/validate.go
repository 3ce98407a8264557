// Package validate wraps go-playground/validator with english
// translations so callers receive readable validation messages.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Validator validates structs tagged with `validate` rules.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a validator with english translations registered.
func New() (*Validator, error) {
	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("failed to register validator translations: %w", err)
	}

	return &Validator{validate: v, trans: trans}, nil
}

// Struct validates s and returns a single error joining the translated
// messages of every failed rule.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fe.Translate(v.trans))
	}
	return errors.New(strings.Join(messages, "; "))
}

// Var validates a single value against a rule string.
func (v *Validator) Var(value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fe.Translate(v.trans))
	}
	return errors.New(strings.Join(messages, "; "))
}
