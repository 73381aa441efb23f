package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/lumina/internal/gateway"
	"github.com/kalambet/lumina/internal/vault"
)

type LoginState string

const (
	LoginIdle              LoginState = "idle"
	LoginExternalHandshake LoginState = "external_handshake"
	LoginCallback          LoginState = "callback"
	LoginHandshake         LoginState = "handshake"
	LoginVerifying         LoginState = "verifying"
	LoginSuccess           LoginState = "success"
)

// CredentialProvider names the built-in identity used for email sign-in.
const CredentialProvider = "LuminaID"

// Handshake pacing.
const (
	externalDelay  = 2000 * time.Millisecond
	callbackDelay  = 1000 * time.Millisecond
	handshakeDelay = 1200 * time.Millisecond
	verifiedDelay  = 1500 * time.Millisecond
	successDelay   = 3500 * time.Millisecond
)

const logLines = 5

// IdentityVerifier turns a provider and optional email into a session.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, provider, email string) gateway.Verification
}

// LoginResult is a verified session ready to be handed to the shell.
type LoginResult struct {
	Welcome string
	Session vault.UserSession
}

// Login is the identity handshake flow.
type Login struct {
	*Machine[LoginState]

	verifier  IdentityVerifier
	timing    Timing
	onSuccess func(ctx context.Context, s vault.UserSession) error

	mu  sync.Mutex
	log []string
}

// NewLogin wires the handshake. onSuccess runs once the success state has
// been shown long enough; it may be nil.
func NewLogin(verifier IdentityVerifier, timing Timing, onSuccess func(ctx context.Context, s vault.UserSession) error) *Login {
	return &Login{
		Machine: NewMachine(LoginIdle, map[LoginState][]LoginState{
			LoginIdle:              {LoginExternalHandshake, LoginHandshake},
			LoginExternalHandshake: {LoginCallback, LoginIdle},
			LoginCallback:          {LoginHandshake, LoginIdle},
			LoginHandshake:         {LoginVerifying, LoginIdle},
			LoginVerifying:         {LoginSuccess, LoginIdle},
		}),
		verifier:  verifier,
		timing:    timing,
		onSuccess: onSuccess,
	}
}

// Log returns the most recent handshake lines, oldest first.
func (l *Login) Log() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.log))
	copy(out, l.log)
	return out
}

func (l *Login) addLog(line string) {
	l.mu.Lock()
	l.log = append(l.log, "> "+line)
	if len(l.log) > logLines {
		l.log = l.log[len(l.log)-logLines:]
	}
	l.mu.Unlock()
}

func (l *Login) clearLog() {
	l.mu.Lock()
	l.log = nil
	l.mu.Unlock()
}

// Social signs in through an external provider.
func (l *Login) Social(ctx context.Context, provider string) (LoginResult, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return LoginResult{}, fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}
	t, err := l.Begin(LoginExternalHandshake, LoginIdle)
	if err != nil {
		return LoginResult{}, err
	}
	l.clearLog()
	l.addLog("Initiating OAuth channel via " + provider + "...")
	if err := l.timing.wait(ctx, externalDelay); err != nil {
		return LoginResult{}, l.fail(t, err)
	}
	if err := l.Advance(t, LoginCallback); err != nil {
		return LoginResult{}, err
	}
	l.addLog("Receiving authentication callback from " + provider + " servers...")
	if err := l.timing.wait(ctx, callbackDelay); err != nil {
		return LoginResult{}, l.fail(t, err)
	}
	if err := l.Advance(t, LoginHandshake); err != nil {
		return LoginResult{}, err
	}
	return l.authenticate(ctx, t, provider, "")
}

// Credentials signs in with an email address.
func (l *Login) Credentials(ctx context.Context, email string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return LoginResult{}, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	t, err := l.Begin(LoginHandshake, LoginIdle)
	if err != nil {
		return LoginResult{}, err
	}
	l.clearLog()
	return l.authenticate(ctx, t, CredentialProvider, email)
}

func (l *Login) authenticate(ctx context.Context, t Ticket, provider, email string) (LoginResult, error) {
	l.addLog("Synchronizing cryptographic identity nodes...")
	if err := l.timing.wait(ctx, handshakeDelay); err != nil {
		return LoginResult{}, l.fail(t, err)
	}
	if err := l.Advance(t, LoginVerifying); err != nil {
		return LoginResult{}, err
	}
	l.addLog("Analyzing biometric integrity vectors...")

	v := l.verifier.VerifyIdentity(ctx, provider, email)
	if !l.Valid(t) {
		return LoginResult{}, ErrAbandoned
	}
	if err := v.Session.Validate(); err != nil {
		return LoginResult{}, l.fail(t, err)
	}
	l.addLog("Lumina Neural Engine has authenticated the identity.")
	if err := l.timing.wait(ctx, verifiedDelay); err != nil {
		return LoginResult{}, l.fail(t, err)
	}
	if err := l.Advance(t, LoginSuccess); err != nil {
		return LoginResult{}, err
	}
	l.addLog("Secure session established. Clearance Tier 1 granted.")

	res := LoginResult{Welcome: v.WelcomeMessage, Session: v.Session}
	if err := l.timing.wait(ctx, successDelay); err != nil {
		return res, err
	}
	if !l.Valid(t) {
		return res, ErrAbandoned
	}
	if l.onSuccess != nil {
		if err := l.onSuccess(ctx, v.Session); err != nil {
			return res, fmt.Errorf("completing login: %w", err)
		}
	}
	return res, nil
}

// fail logs the handshake failure and returns to idle.
func (l *Login) fail(t Ticket, cause error) error {
	if !l.Valid(t) {
		return ErrAbandoned
	}
	l.addLog("Handshake fatal error: Node synchronization failed.")
	if err := l.Advance(t, LoginIdle); err != nil {
		return err
	}
	return fmt.Errorf("login handshake: %w", cause)
}

// Reset abandons any handshake in progress.
func (l *Login) Reset() {
	l.clearLog()
	l.Machine.Reset()
}
