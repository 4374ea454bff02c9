package validator

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=18"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Username: "alice",
		Email:    "alice@example.com",
		Age:      20,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Username: "",
		Email:    "invalid",
		Age:      10,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundEmail := false
	for _, v := range vErrs {
		if v.Field == "email" {
			foundEmail = true
		}
	}

	if !foundEmail {
		t.Fatal("expected email field to be present in validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("mystery", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "mystery"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"mystery"`
	}

	if err := ValidateStruct(custom{Value: "mystery"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}

func TestUsernameRule(t *testing.T) {
	type signup struct {
		Username string `json:"username" validate:"required,min=2,max=20,username"`
	}

	valid := []string{"al", "alice_01", "ABC_def_123", strings.Repeat("a", 20)}
	for _, name := range valid {
		if err := ValidateStruct(signup{Username: name}); err != nil {
			t.Fatalf("expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"a", "alice!", "al ice", "ålice", strings.Repeat("a", 21)}
	for _, name := range invalid {
		if err := ValidateStruct(signup{Username: name}); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestPasswordPolicyRule(t *testing.T) {
	cases := map[string]bool{
		"Abcdef1!": true,
		"Abcdef1_": true,
		"abcdef1!": false,
		"ABCDEF1!": false,
		"Abcdefg!": false,
		"Abcdefg1": false,
	}

	for password, want := range cases {
		if got := IsStrongPassword(password); got != want {
			t.Fatalf("IsStrongPassword(%q) = %v, want %v", password, got, want)
		}
	}

	type creds struct {
		Password string `json:"password" validate:"password_policy"`
	}
	err := ValidateStruct(creds{Password: "weak"})
	vErrs, ok := err.(ValidationErrors)
	if !ok || len(vErrs) != 1 || vErrs[0].Tag != "password_policy" {
		t.Fatalf("expected password_policy failure, got %v", err)
	}
}
