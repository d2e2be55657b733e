package workspace

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	variableKeyPattern = regexp.MustCompile(`^[^{}\s]+$`)
	baseURLPattern     = regexp.MustCompile(`^(https?://|\{\{)`)
)

// ValidateName checks a project, folder, request or environment name. The
// store itself accepts any name; callers validate user input first.
func ValidateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.By(notBlank),
		validation.RuneLength(1, 200),
	)
}

func notBlank(value interface{}) error {
	if s, _ := value.(string); strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

// ValidateVariableKey checks an environment variable key. Keys may not
// contain braces or whitespace, so that {{key}} stays a single placeholder.
func ValidateVariableKey(key string) error {
	return validation.Validate(key,
		validation.Required,
		validation.RuneLength(1, 128),
		validation.Match(variableKeyPattern).Error("must not contain braces or whitespace"),
	)
}

// Validate checks the fields of a ProjectInfo.
func (i ProjectInfo) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Description, validation.RuneLength(0, 2000)),
		validation.Field(&i.Icon, validation.RuneLength(0, 64)),
		validation.Field(&i.BaseURL, validation.Match(baseURLPattern).Error("must start with http://, https:// or a {{variable}}")),
	)
}
