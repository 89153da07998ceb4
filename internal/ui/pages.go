package ui

import "github.com/a-h/templ"

const brandGlyph = `<svg class="brand-glyph" viewBox="0 0 24 24" width="32" height="32" fill="none" stroke="currentColor" stroke-width="1.5" aria-hidden="true"><path d="M14 2H6a2 2 0 0 0-2 2v16a2 2 0 0 0 2 2h12a2 2 0 0 0 2-2V8z"/><path d="M14 2v6h6M8 13h8M8 17h5"/></svg>`

var brandIcons = []OrbitIcon{
	{Component: Icon(`<svg viewBox="0 0 24 24" width="24" height="24" fill="none" stroke="currentColor" stroke-width="1.5" aria-hidden="true"><path d="M12 20h9M16.5 3.5a2.1 2.1 0 0 1 3 3L7 19l-4 1 1-4z"/></svg>`)},
	{Component: Icon(`<svg viewBox="0 0 24 24" width="24" height="24" fill="none" stroke="currentColor" stroke-width="1.5" aria-hidden="true"><circle cx="9" cy="7" r="4"/><path d="M2 21v-2a4 4 0 0 1 4-4h6a4 4 0 0 1 4 4v2M16 3.1a4 4 0 0 1 0 7.8M22 21v-2a4 4 0 0 0-3-3.9"/></svg>`), Reverse: true},
	{Component: Icon(`<svg viewBox="0 0 24 24" width="24" height="24" fill="none" stroke="currentColor" stroke-width="1.5" aria-hidden="true"><path d="M21 15a2 2 0 0 1-2 2H7l-4 4V5a2 2 0 0 1 2-2h14a2 2 0 0 1 2 2z"/></svg>`)},
	{Component: Icon(`<svg viewBox="0 0 24 24" width="24" height="24" fill="none" stroke="currentColor" stroke-width="1.5" aria-hidden="true"><path d="M13 2 3 14h9l-1 8 10-12h-9z"/></svg>`), Reverse: true},
}

// AuthLayoutProps configures AuthPage.
type AuthLayoutProps struct {
	Title    string
	SignedIn bool
	// ReturnTo is where sign-out comes back to.
	ReturnTo string
	Form     templ.Component
}

// AuthPage is the two-panel sign-in / sign-up layout with the brand panel.
func AuthPage(p AuthLayoutProps) templ.Component {
	return Page(p.Title, authBody(p))
}

// CallbackErrorPage is shown when the OAuth callback fails.
func CallbackErrorPage(message string) templ.Component {
	if message = CleanMessage(message); message == "" {
		message = "Authentication failed"
	}
	return Page("Authentication Error | LiveDocs", callbackBody(message))
}

// HomeProps configures HomePage.
type HomeProps struct {
	SignedIn bool
	UserID   string
}

// HomePage is the landing page.
func HomePage(p HomeProps) templ.Component {
	return Page("LiveDocs", homeBody(p))
}
