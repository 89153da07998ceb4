package ui

import (
	"strconv"

	"github.com/a-h/templ"

	"github.com/markb/livedocs/internal/forms"
)

// DefaultGoogleLabel is the Google button label used by AuthTabs.
const DefaultGoogleLabel = "Login with Google"

// FormProps configures AnimatedForm.
type FormProps struct {
	Header    string
	SubHeader string

	Fields []forms.Field
	Values forms.Values
	Errors forms.Errors

	// Action is where the credential form posts.
	Action        string
	SubmitButton  string
	SubmitPending string

	// TextVariantButton links to the other auth page.
	TextVariantButton string
	TextVariantHref   string

	// ErrorField is the form-level message, e.g. a provider error.
	ErrorField   string
	FieldsPerRow int

	// GoogleLogin labels the Google button, which posts to GoogleAction.
	GoogleLogin  string
	GoogleAction string

	ForgotPassword bool
}

// AuthTabs is AnimatedForm laid out one field per row with a Google button.
func AuthTabs(p FormProps) templ.Component {
	p.FieldsPerRow = 1
	if p.GoogleAction != "" && p.GoogleLogin == "" {
		p.GoogleLogin = DefaultGoogleLabel
	}
	return AnimatedForm(p)
}

func fieldsPerRow(n int) templ.SafeCSS {
	if n <= 0 {
		n = 1
	}
	return templ.SafeCSS("--fields-per-row:" + strconv.Itoa(n))
}

func inputProps(f forms.Field, values forms.Values, errs forms.Errors) InputProps {
	p := InputProps{
		ID:          fieldID(f.Label),
		Name:        f.Name(),
		Type:        string(f.Type),
		Placeholder: f.Placeholder,
		Required:    f.Required,
		Invalid:     errs.Get(f.Label) != "",
	}
	if f.Type != forms.TypePassword {
		p.Value = values[f.Name()]
	}
	return p
}

const googleGlyph = `<svg class="google-glyph" viewBox="0 0 24 24" width="18" height="18" aria-hidden="true"><path fill="#4285F4" d="M22.56 12.25c0-.78-.07-1.53-.2-2.25H12v4.26h5.92a5.06 5.06 0 0 1-2.2 3.32v2.77h3.57c2.08-1.92 3.27-4.74 3.27-8.1z"/><path fill="#34A853" d="M12 23c2.97 0 5.46-.98 7.28-2.66l-3.57-2.77c-.98.66-2.23 1.06-3.71 1.06-2.86 0-5.29-1.93-6.16-4.53H2.18v2.84A11 11 0 0 0 12 23z"/><path fill="#FBBC05" d="M5.84 14.09A6.6 6.6 0 0 1 5.5 12c0-.73.13-1.43.34-2.09V7.07H2.18A11 11 0 0 0 1 12c0 1.78.43 3.45 1.18 4.93l3.66-2.84z"/><path fill="#EA4335" d="M12 5.38c1.62 0 3.06.56 4.21 1.64l3.15-3.15C17.45 2.09 14.97 1 12 1A11 11 0 0 0 2.18 7.07l3.66 2.84C6.71 7.31 9.14 5.38 12 5.38z"/></svg>`
