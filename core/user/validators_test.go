package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/soko/core"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	RegisterValidators(validate, translator)
	return validate
}

func hasTag(err error, tag string) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, verr := range verrs {
		if verr.Tag() == tag {
			return true
		}
	}
	return false
}

func Test_validatePassword(t *testing.T) {
	validate := newTestValidator(t)

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:            "Jane Doe",
			Username:        "jane",
			Email:           "jane@test.cd",
			Password:        pwd,
			PasswordConfirm: pwd,
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{"valid password passes", "LordOfTheRings", ""},
		{"too short", "shrt", pwdMinLenTag},
		{"whitespace rejected", "Lord Of The Rings", pwdNoSpaceTag},
		{"all numeric rejected", "90785434679", pwdNotAllNumTag},
		{"similar to email rejected", "jane@test.cdX", pwdAttrSimTag},
		{"common password rejected", "Password1", pwdNoCommonTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(newUser(tt.pwd))
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("expected no error; got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !hasTag(err, tt.wantTag) {
				t.Errorf("expected tag %q in %v", tt.wantTag, err)
			}
		})
	}
}

func Test_allRolesValidation(t *testing.T) {
	validate := newTestValidator(t)

	nu := NewUser{
		Name:            "Jane Doe",
		Username:        "jane",
		Email:           "jane@test.cd",
		Password:        "LordOfTheRings",
		PasswordConfirm: "LordOfTheRings",
		Roles:           []string{"superhero:"},
	}
	if err := validate.Struct(nu); err == nil || !hasTag(err, allRolesTag) {
		t.Errorf("expected tag %q; got %v", allRolesTag, err)
	}

	nu.Roles = AllRoles
	if err := validate.Struct(nu); err != nil {
		t.Errorf("expected no error; got %v", err)
	}
}
