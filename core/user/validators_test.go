package user

import (
	"testing"

	"github.com/elimu-cd/elimu/core"
)

func Test_validatePassword(t *testing.T) {
	getFieldError := func(t *testing.T, err error) core.FieldError {
		t.Helper()
		vErr, ok := err.(*core.ValidationError)
		if !ok {
			t.Fatalf("validatePassword() error = %T, want *core.ValidationError", err)
		}
		if len(vErr.Fields) != 1 {
			t.Fatalf("validatePassword() fields = %v, want 1 field", vErr.Fields)
		}
		return vErr.Fields[0]
	}

	tests := []struct {
		name     string
		pwd      string
		attrs    []string
		wantText string
	}{
		{name: "too short", pwd: "lol", wantText: pwdMinLenText},
		{name: "whitespace", pwd: "l o loll", wantText: pwdNoSpaceText},
		{name: "all numeric", pwd: "12345678", wantText: pwdNotAllNumText},
		{name: "similar to username", pwd: "awesomeness1", attrs: []string{"awesomeness"}, wantText: pwdAttrSimText},
		{name: "similar to email", pwd: "hero4real", attrs: []string{"lol", "hero4real@test.cd"}, wantText: pwdAttrSimText},
		{name: "too common", pwd: "password", wantText: pwdNoCommonText},
		{name: "ok", pwd: "g00d/enough", attrs: []string{"awe", "awe@test.cd", "Awe", "Test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePassword(tt.pwd, tt.attrs...)
			if tt.wantText == "" {
				if err != nil {
					t.Errorf("validatePassword() unexpected error = %v", err)
				}
				return
			}
			fldErr := getFieldError(t, err)
			if fldErr.Field != "password" {
				t.Errorf("field = %s, want password", fldErr.Field)
			}
			if fldErr.Error != tt.wantText {
				t.Errorf("error = %q, want %q", fldErr.Error, tt.wantText)
			}
		})
	}
}

func TestUser_roles(t *testing.T) {
	if usr := (User{Role: RoleTeacher}); !usr.IsTeacher() || usr.IsStudent() || usr.IsAdmin() {
		t.Error("teacher role misreported")
	}
	if usr := (User{Role: RoleStudent}); !usr.IsStudent() || usr.IsTeacher() {
		t.Error("student role misreported")
	}
	if usr := (User{Role: RoleAdmin}); !usr.IsAdmin() || usr.IsTeacher() {
		t.Error("admin role misreported")
	}
}
