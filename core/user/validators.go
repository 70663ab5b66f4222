package user

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/elimu-cd/elimu/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceText   = "password must not contain whitespace"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonText = "password is too common"
	commonPasswords []string
)

//go:embed assets/common-passwords.txt
var commonPasswordsRaw string

func init() {
	for _, line := range strings.Split(commonPasswordsRaw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			commonPasswords = append(commonPasswords, line)
		}
	}
	sort.Strings(commonPasswords)

	_ = core.Validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, roleTag, roleText)
}

func roleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

// validatePassword enforces the password policy against the given user attributes.
func validatePassword(pwd string, attrs ...string) error {
	fldErr := func(text string) error {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: text})
	}

	if len(pwd) < pwdMinLen {
		return fldErr(pwdMinLenText)
	}
	if strings.ContainsAny(pwd, " \t\n") {
		return fldErr(pwdNoSpaceText)
	}

	allNum := true
	for _, r := range pwd {
		if !unicode.IsDigit(r) {
			allNum = false
			break
		}
	}
	if allNum {
		return fldErr(pwdNotAllNumText)
	}

	// similarity with user attributes (username, email, names)
	lowPwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		for _, part := range strings.FieldsFunc(strings.ToLower(attr), func(r rune) bool { return r == '@' || r == '.' || r == ' ' || r == '_' || r == '-' }) {
			if part == "" {
				continue
			}
			matcher := difflib.NewMatcher(strings.Split(lowPwd, ""), strings.Split(part, ""))
			if matcher.QuickRatio() > pwdMaxSim {
				return fldErr(pwdAttrSimText)
			}
		}
	}

	if i := sort.SearchStrings(commonPasswords, lowPwd); i < len(commonPasswords) && commonPasswords[i] == lowPwd {
		return fldErr(pwdNoCommonText)
	}
	return nil
}
