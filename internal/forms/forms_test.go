package forms

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signUpFields = []Field{
	{Label: "First Name", Type: TypeText, Required: true},
	{Label: "Last Name", Type: TypeText, Required: true},
	{Label: "Email", Type: TypeEmail, Required: true},
	{Label: "Password", Type: TypePassword, Required: true},
}

func TestValidateRequired(t *testing.T) {
	errs := Validate(signUpFields, Values{"Email": "ada@example.com", "Password": "secret123"})

	assert.Len(t, errs, 2)
	assert.Equal(t, "First Name is required", errs.Get("First Name"))
	assert.Equal(t, "Last Name is required", errs.Get("Last Name"))
	assert.False(t, errs.Has("Email"))
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"ada@example.com", true},
		{"a@b.c", true},
		{"  ada@example.com  ", true},
		{"ada@example", false},
		{"ada.example.com", false},
		{"@example.com", false},
		{"ada @example.com", false},
	}
	fields := []Field{{Label: "Email", Type: TypeEmail, Required: true}}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			errs := Validate(fields, Values{"Email": tt.email})
			if tt.valid {
				assert.Empty(t, errs)
			} else {
				assert.Equal(t, "Invalid email address", errs.Get("Email"))
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	fields := []Field{{Label: "Password", Type: TypePassword, Required: true}}

	assert.Equal(t, "Password must be at least 6 characters long", Validate(fields, Values{"Password": "12345"}).Get("Password"))
	assert.Empty(t, Validate(fields, Values{"Password": "123456"}))
	assert.Equal(t, "Password is required", Validate(fields, Values{}).Get("Password"))
}

func TestValidateOptionalFields(t *testing.T) {
	fields := []Field{
		{Label: "Nickname", Type: TypeText},
		{Label: "Backup Email", Type: TypeEmail},
	}
	assert.Empty(t, Validate(fields, Values{}))
	assert.Equal(t, "Invalid email address", Validate(fields, Values{"Backup Email": "nope"}).Get("Backup Email"))
}

func TestValuesFromRequest(t *testing.T) {
	form := url.Values{}
	form.Set("First Name", "Ada")
	form.Set("Email", "ada@example.com")
	form.Set("Ignored", "x")

	req := httptest.NewRequest(http.MethodPost, "/modern-sign-up", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values, err := ValuesFromRequest(req, signUpFields)
	require.NoError(t, err)
	assert.Equal(t, Values{"First Name": "Ada", "Last Name": "", "Email": "ada@example.com", "Password": ""}, values)
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "First Name", Field{Label: "First Name"}.Name())
}
