package forms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignUp() SignUp {
	return SignUp{
		FullName: "Mary-Jane O'Neil",
		Username: "mj_reads",
		Email:    "mj@example.com",
		Password: "correct-horse!",
		Country:  "Kenya",
	}
}

func fieldErrors(t *testing.T, err error) FieldErrors {
	t.Helper()
	require.Error(t, err)
	fe, ok := err.(FieldErrors)
	require.True(t, ok, "expected FieldErrors, got %T", err)
	return fe
}

func TestValidate_SignUpValid(t *testing.T) {
	assert.NoError(t, Validate(validSignUp()))
}

func TestValidate_SignUpPasswordWithoutSpecialCharacter(t *testing.T) {
	form := validSignUp()
	form.Password = "correcthorse"

	fe := fieldErrors(t, Validate(form))
	assert.Equal(t, FieldErrors{
		"password": "Password must contain at least one special character (@$!%*?&)",
	}, fe)
}

func TestValidate_SignUpRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SignUp)
		field  string
		msg    string
	}{
		{"short name", func(f *SignUp) { f.FullName = "A" }, "fullName", "Full name must be at least 2 characters long"},
		{"long name", func(f *SignUp) { f.FullName = strings.Repeat("a", 51) }, "fullName", "Full name must not exceed 50 characters"},
		{"digits in name", func(f *SignUp) { f.FullName = "R2 D2" }, "fullName", "Full name can only contain letters, spaces, hyphens, and apostrophes"},
		{"bad email", func(f *SignUp) { f.Email = "not-an-email" }, "email", "Invalid email address"},
		{"short password", func(f *SignUp) { f.Password = "a!b" }, "password", "Password must be at least 8 characters long"},
		{"long password", func(f *SignUp) { f.Password = strings.Repeat("a", 72) + "!" }, "password", "Password must not exceed 72 characters"},
		{"missing country", func(f *SignUp) { f.Country = "" }, "country", "Country is required"},
		{"uppercase username", func(f *SignUp) { f.Username = "MaryJane" }, "username", "Username can only contain lowercase letters, numbers, and underscores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validSignUp()
			tt.mutate(&form)
			fe := fieldErrors(t, Validate(form))
			assert.Len(t, fe, 1)
			assert.Equal(t, tt.msg, fe[tt.field])
		})
	}
}

func TestValidate_SignIn(t *testing.T) {
	assert.NoError(t, Validate(SignIn{Email: "a@b.co", Password: "x"}))

	fe := fieldErrors(t, Validate(&SignIn{}))
	assert.Equal(t, "Email is required", fe["email"])
	assert.Equal(t, "Password is required", fe["password"])
}

func TestValidate_NewBook(t *testing.T) {
	ok := NewBook{Title: "Dune", Author: "Frank Herbert", Condition: "good", Language: "English", CoverFile: "cover.JPG"}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.Title = "   "
	bad.Condition = "mint"
	bad.CoverFile = "cover.pdf"
	fe := fieldErrors(t, Validate(bad))
	assert.Equal(t, "Title is required", fe["title"])
	assert.Equal(t, "Condition must be one of: like_new, excellent, good, fair, acceptable", fe["condition"])
	assert.Equal(t, "Cover image must be a png, jpg, webp or gif file", fe["coverFile"])
}

func TestFieldErrors_ErrorIsSorted(t *testing.T) {
	fe := FieldErrors{"password": "p", "email": "e"}
	assert.Equal(t, "email: e; password: p", fe.Error())
}
