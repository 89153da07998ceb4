package handshake

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/livedocs/internal/db"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/identity/identitytest"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())
	return NewStore(database.DB)
}

type transitionLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *transitionLog) record(ctx context.Context, intent identity.Intent, from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, from.String()+"->"+to.String())
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Redirecting, true},
		{Idle, Complete, false},
		{Redirecting, CallbackProcessing, true},
		{Redirecting, Complete, false},
		{CallbackProcessing, Complete, true},
		{CallbackProcessing, Failed, true},
		{CallbackProcessing, Idle, false},
		{Complete, Idle, false},
		{Failed, Redirecting, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, Complete.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Redirecting.Terminal())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestIsRelativePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/sso-callback", true},
		{"/modern-sign-in?redirect_url=%2Fdocs", true},
		{"", false},
		{"sso-callback", false},
		{"//evil.example.com", false},
		{"/\\evil.example.com", false},
		{"https://evil.example.com/", false},
		{"/path\r\nSet-Cookie: x", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRelativePath(tt.path))
		})
	}
}

func TestStoreSaveAndTake(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	flow := &Flow{
		ID:                  "state-123",
		Intent:              identity.IntentSignUp,
		Strategy:            identity.StrategyGoogle,
		Verifier:            "verifier-abc",
		Origin:              "http://localhost:8080",
		RedirectURL:         CallbackPath,
		RedirectURLComplete: CompletePath,
	}
	require.NoError(t, store.Save(ctx, flow))
	assert.Equal(t, FlowTTL, flow.ExpiresAt.Sub(flow.CreatedAt))

	got, err := store.Take(ctx, "state-123")
	require.NoError(t, err)
	assert.Equal(t, identity.IntentSignUp, got.Intent)
	assert.Equal(t, identity.StrategyGoogle, got.Strategy)
	assert.Equal(t, "verifier-abc", got.Verifier)
	assert.Equal(t, "http://localhost:8080", got.Origin)
	assert.Equal(t, CallbackPath, got.RedirectURL)
	assert.Equal(t, CompletePath, got.RedirectURLComplete)

	_, err = store.Take(ctx, "state-123")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestStoreTakeUnknown(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Take(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFlowNotFound)

	_, err = store.Take(context.Background(), "")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestStoreSaveRequiresID(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.Save(context.Background(), &Flow{Intent: identity.IntentSignIn}))
}

func TestStoreExpiry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.Save(ctx, &Flow{ID: "old", Intent: identity.IntentSignIn, Strategy: identity.StrategyGoogle, Verifier: "v", RedirectURL: "/sso-callback", RedirectURLComplete: "/"}))
	require.NoError(t, store.Save(ctx, &Flow{ID: "fresh", Intent: identity.IntentSignIn, Strategy: identity.StrategyGoogle, Verifier: "v", RedirectURL: "/sso-callback", RedirectURLComplete: "/"}))

	store.now = func() time.Time { return base.Add(FlowTTL + time.Second) }
	_, err := store.Take(ctx, "old")
	assert.ErrorIs(t, err, ErrFlowNotFound)

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStoreCleanupKeepsLiveFlows(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Flow{ID: "live", Intent: identity.IntentSignIn, Strategy: identity.StrategyGoogle, Verifier: "v", RedirectURL: "/sso-callback", RedirectURLComplete: "/"}))
	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBeginRedirects(t *testing.T) {
	store := setupTestStore(t)
	idp := identitytest.New()
	idp.RedirectURL = "https://idp.example.com/oauth/authorize?state=state_1"
	var steps transitionLog
	initiator := NewInitiator(idp, store)
	initiator.OnTransition = steps.record

	out, err := initiator.Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn, Origin: "http://localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, Redirecting, out.State)
	assert.Equal(t, idp.RedirectURL, out.Next)
	assert.False(t, out.AlreadySignedIn)
	assert.Equal(t, []string{"idle->redirecting"}, steps.steps)

	assert.Equal(t, identity.StrategyGoogle, idp.LastRedirect.Strategy)
	assert.Equal(t, "/sso-callback", idp.LastRedirect.RedirectURL)
	assert.Equal(t, "/", idp.LastRedirect.RedirectURLComplete)

	flow, err := store.Take(context.Background(), "state_1")
	require.NoError(t, err)
	assert.Equal(t, "verifier_1", flow.Verifier)
	assert.Equal(t, "http://localhost:8080", flow.Origin)
}

func TestBeginWithActiveSession(t *testing.T) {
	store := setupTestStore(t)
	idp := identitytest.New()
	idp.AddSession("tok", "user_1")

	out, err := NewInitiator(idp, store).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn, SessionToken: "tok"})
	require.NoError(t, err)
	assert.True(t, out.AlreadySignedIn)
	assert.Equal(t, "/", out.Next)
	assert.False(t, idp.Called("InitiateRedirect"))
}

func TestBeginAlreadySignedInFromProvider(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"sentinel", identity.ErrAlreadySignedIn},
		{"api error", &identity.APIError{StatusCode: http.StatusBadRequest, Errors: []identity.ErrorDetail{{Code: identity.CodeSessionExists, Message: "Session already exists"}}}},
		{"message", errors.New("You're already signed in.")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := identitytest.New()
			idp.InitiateErr = tt.err

			out, err := NewInitiator(idp, setupTestStore(t)).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignUp})
			require.NoError(t, err)
			assert.True(t, out.AlreadySignedIn)
			assert.Equal(t, "/", out.Next)
		})
	}
}

func TestBeginProviderError(t *testing.T) {
	idp := identitytest.New()
	idp.InitiateErr = errors.New("strategy not enabled")

	_, err := NewInitiator(idp, setupTestStore(t)).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn})
	require.Error(t, err)
	assert.Equal(t, "Google sign-in error: strategy not enabled", err.Error())

	_, err = NewInitiator(idp, setupTestStore(t)).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignUp})
	assert.Equal(t, "Google sign-up error: strategy not enabled", err.Error())
}

func TestBeginFallbackMessage(t *testing.T) {
	err := &InitiateError{Intent: identity.IntentSignIn}
	assert.Equal(t, "Failed to initiate Google sign-in. Please try again.", err.Error())

	err = &InitiateError{Intent: identity.IntentSignUp, Err: errors.New("")}
	assert.Equal(t, "Failed to initiate Google sign-up. Please try again.", err.Error())
}

func TestBeginRejectsUnsafeRedirect(t *testing.T) {
	idp := identitytest.New()
	initiator := NewInitiator(idp, setupTestStore(t))
	initiator.RedirectURL = "https://evil.example.com/callback"

	_, err := initiator.Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafeRedirect)
	assert.False(t, idp.Called("InitiateRedirect"))
}

func TestBeginSessionCheckFailure(t *testing.T) {
	idp := identitytest.New()
	idp.CheckErr = errors.New("provider unavailable")

	_, err := NewInitiator(idp, setupTestStore(t)).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn, SessionToken: "tok"})
	require.Error(t, err)
	assert.Equal(t, "Google sign-in error: provider unavailable", err.Error())
}

func beginFlow(t *testing.T, idp *identitytest.Fake, store *Store) {
	t.Helper()
	_, err := NewInitiator(idp, store).Begin(context.Background(), BeginRequest{Intent: identity.IntentSignIn, Origin: "http://localhost:8080"})
	require.NoError(t, err)
}

func TestCompleteSuccess(t *testing.T) {
	store := setupTestStore(t)
	idp := identitytest.New()
	beginFlow(t, idp, store)

	var steps transitionLog
	completer := NewCompleter(idp, store)
	completer.OnTransition = steps.record

	res, err := completer.Complete(context.Background(), CallbackParams{State: "state_1", Code: "code_1"})
	require.NoError(t, err)
	assert.Equal(t, Complete, res.State)
	assert.Equal(t, "/", res.Next)
	assert.Equal(t, "tok_sess_oauth", res.Session.Token)
	assert.Equal(t, []string{"redirecting->callback_processing", "callback_processing->complete"}, steps.steps)

	assert.Equal(t, "code_1", idp.LastCallback.Code)
	assert.Equal(t, "verifier_1", idp.LastCallback.Verifier)
	assert.Equal(t, "http://localhost:8080", idp.LastCallback.Origin)
	assert.Equal(t, "/sso-callback", idp.LastCallback.RedirectURL)
}

func TestCompleteUsesProviderLocation(t *testing.T) {
	store := setupTestStore(t)
	idp := identitytest.New()
	idp.Completion = &identity.Completion{SessionID: "sess_9", SignUp: true, RedirectURL: "/docs"}
	beginFlow(t, idp, store)

	res, err := NewCompleter(idp, store).Complete(context.Background(), CallbackParams{State: "state_1", Code: "code_1"})
	require.NoError(t, err)
	assert.Equal(t, "/docs", res.Next)

	store2 := setupTestStore(t)
	idp.Completion = &identity.Completion{SessionID: "sess_9", RedirectURL: "https://evil.example.com"}
	beginFlow(t, idp, store2)
	res, err = NewCompleter(idp, store2).Complete(context.Background(), CallbackParams{State: "state_1", Code: "code_1"})
	require.NoError(t, err)
	assert.Equal(t, "/", res.Next)
}

func TestCompleteIsSingleUse(t *testing.T) {
	store := setupTestStore(t)
	idp := identitytest.New()
	beginFlow(t, idp, store)
	completer := NewCompleter(idp, store)

	_, err := completer.Complete(context.Background(), CallbackParams{State: "state_1", Code: "code_1"})
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), CallbackParams{State: "state_1", Code: "code_1"})
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestCompleteFailures(t *testing.T) {
	t.Run("unknown state", func(t *testing.T) {
		idp := identitytest.New()
		_, err := NewCompleter(idp, setupTestStore(t)).Complete(context.Background(), CallbackParams{State: "nope", Code: "c"})
		assert.ErrorIs(t, err, ErrFlowNotFound)
		assert.False(t, idp.Called("CompleteRedirect"))
	})

	t.Run("exchange error", func(t *testing.T) {
		store := setupTestStore(t)
		idp := identitytest.New()
		idp.CompleteErr = &identity.APIError{StatusCode: http.StatusBadRequest, Errors: []identity.ErrorDetail{{Code: "access_denied", Message: "The user denied access."}}}
		beginFlow(t, idp, store)

		var steps transitionLog
		completer := NewCompleter(idp, store)
		completer.OnTransition = steps.record

		_, err := completer.Complete(context.Background(), CallbackParams{State: "state_1", Error: "access_denied"})
		require.Error(t, err)
		assert.Equal(t, "The user denied access.", FailureMessage(err))
		assert.Equal(t, []string{"redirecting->callback_processing", "callback_processing->failed"}, steps.steps)
		assert.False(t, idp.Called("ActivateSession"))
	})

	t.Run("activation error", func(t *testing.T) {
		store := setupTestStore(t)
		idp := identitytest.New()
		idp.ActivateErr = errors.New("session revoked")
		beginFlow(t, idp, store)

		_, err := NewCompleter(idp, store).Complete(context.Background(), CallbackParams{State: "state_1", Code: "c"})
		require.Error(t, err)
		assert.Equal(t, "session revoked", FailureMessage(err))
	})
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Authentication failed", FailureMessage(nil))
	assert.Equal(t, "Authentication failed", FailureMessage(errors.New("")))
	assert.Equal(t, "sign-in session not found or expired", FailureMessage(ErrFlowNotFound))
}
