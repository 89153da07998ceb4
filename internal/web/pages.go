package web

import (
	"github.com/markb/livedocs/internal/forms"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/ui"
)

// GenericError is shown when the provider gives nothing more specific.
const GenericError = "Something went wrong. Please try again."

// authPage is the fixed configuration of one of the two auth pages.
type authPage struct {
	Intent identity.Intent
	Title  string
	Path   string
	Fields []forms.Field
	Form   ui.FormProps
}

var (
	signInFields = []forms.Field{
		{Label: "Email", Type: forms.TypeEmail, Required: true, Placeholder: "you@example.com"},
		{Label: "Password", Type: forms.TypePassword, Required: true, Placeholder: "••••••••"},
	}

	signUpFields = []forms.Field{
		{Label: "First Name", Type: forms.TypeText, Required: true, Placeholder: "Ada"},
		{Label: "Last Name", Type: forms.TypeText, Required: true, Placeholder: "Lovelace"},
		{Label: "Email", Type: forms.TypeEmail, Required: true, Placeholder: "you@example.com"},
		{Label: "Password", Type: forms.TypePassword, Required: true, Placeholder: "••••••••"},
	}
)

var signInPage = authPage{
	Intent: identity.IntentSignIn,
	Title:  "Sign in | LiveDocs",
	Path:   "/modern-sign-in",
	Fields: signInFields,
	Form: ui.FormProps{
		Header:            "Welcome back",
		SubHeader:         "Sign in to your account",
		Fields:            signInFields,
		Action:            "/modern-sign-in",
		SubmitButton:      "Sign in →",
		SubmitPending:     "Signing in...",
		TextVariantButton: "Don't have an account? Sign up",
		TextVariantHref:   "/modern-sign-up",
		GoogleAction:      "/modern-sign-in/oauth",
		ForgotPassword:    true,
	},
}

var signUpPage = authPage{
	Intent: identity.IntentSignUp,
	Title:  "Sign up | LiveDocs",
	Path:   "/modern-sign-up",
	Fields: signUpFields,
	Form: ui.FormProps{
		Header:            "Create your account",
		SubHeader:         "Welcome! Please fill in the details to get started.",
		Fields:            signUpFields,
		Action:            "/modern-sign-up",
		SubmitButton:      "Sign up →",
		SubmitPending:     "Signing up...",
		TextVariantButton: "Already have an account? Sign in",
		TextVariantHref:   "/modern-sign-in",
		GoogleLogin:       "Continue with Google",
		GoogleAction:      "/modern-sign-up/oauth",
	},
}

// view renders the page with the submitted values and any messages.
func (p authPage) view(signedIn bool, values forms.Values, errs forms.Errors, message string) ui.AuthLayoutProps {
	form := p.Form
	form.Values = values
	form.Errors = errs
	form.ErrorField = message
	return ui.AuthLayoutProps{
		Title:    p.Title,
		SignedIn: signedIn,
		ReturnTo: p.Path,
		Form:     ui.AuthTabs(form),
	}
}
