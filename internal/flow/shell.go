package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kalambet/lumina/internal/catalog"
	"github.com/kalambet/lumina/internal/vault"
)

type View string

const (
	ViewHome      View = "home"
	ViewServices  View = "services"
	ViewWhyUs     View = "why-us"
	ViewContact   View = "contact"
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)

// Views lists every navigable view.
var Views = []View{ViewHome, ViewServices, ViewWhyUs, ViewContact, ViewLogin, ViewDashboard}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidInput, s)
}

type Tab string

const (
	TabBriefs  Tab = "briefs"
	TabVisions Tab = "visions"
	TabAccount Tab = "account"
)

const (
	overlayDelay   = 1000 * time.Millisecond
	dashboardDelay = 2000 * time.Millisecond
)

// SessionStore holds the signed-in user.
type SessionStore interface {
	GetSession() (*vault.UserSession, error)
	SetSession(s vault.UserSession) error
	ClearSession() error
}

// ShellState is a snapshot of the application shell.
type ShellState struct {
	View          View               `json:"view"`
	Section       string             `json:"activeSection"`
	Tab           Tab                `json:"dashboardTab"`
	Overlay       bool               `json:"overlay"`
	ProjectIntent string             `json:"projectIntent,omitempty"`
	SelectedPlan  string             `json:"selectedPlan,omitempty"`
	User          *vault.UserSession `json:"user,omitempty"`
}

// Shell tracks the current view and the signed-in user.
type Shell struct {
	*Machine[View]

	store  SessionStore
	timing Timing
	upper  cases.Caser

	mu      sync.Mutex
	user    *vault.UserSession
	section string
	tab     Tab
	overlay bool
	intent  string
	plan    string
}

// NewShell starts on the home view with the session read from store.
func NewShell(store SessionStore, timing Timing) (*Shell, error) {
	table := make(map[View][]View, len(Views))
	for _, v := range Views {
		table[v] = Views
	}
	user, err := store.GetSession()
	if err != nil {
		return nil, fmt.Errorf("hydrating session: %w", err)
	}
	return &Shell{
		Machine: NewMachine(ViewHome, table),
		store:   store,
		timing:  timing,
		upper:   cases.Upper(language.English),
		user:    user,
		section: "Home",
		tab:     TabBriefs,
	}, nil
}

// Snapshot returns the shell's current state.
func (s *Shell) Snapshot() ShellState {
	view := s.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ShellState{
		View:          view,
		Section:       s.section,
		Tab:           s.tab,
		Overlay:       s.overlay,
		ProjectIntent: s.intent,
		SelectedPlan:  s.plan,
	}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// User returns the signed-in user, if any.
func (s *Shell) User() *vault.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Navigate moves to view. The login view redirects to the dashboard while
// a user is signed in. Navigating clears any project intent.
func (s *Shell) Navigate(view View) (View, error) {
	s.mu.Lock()
	if view == ViewLogin && s.user != nil {
		view = ViewDashboard
	}
	if view == ViewDashboard && s.user == nil {
		view = ViewLogin
	}
	s.intent = ""
	s.mu.Unlock()
	s.Abandon()
	if err := s.Transition(view); err != nil {
		return s.State(), err
	}
	return view, nil
}

// StartProject shows the initiation overlay, then lands on home with the
// intent recorded for the contact form.
func (s *Shell) StartProject(ctx context.Context, source string) error {
	t := s.Claim()
	s.mu.Lock()
	s.overlay = true
	s.intent = strings.TrimSpace(source)
	s.mu.Unlock()

	err := s.timing.wait(ctx, overlayDelay)
	if !s.Valid(t) {
		return ErrAbandoned
	}
	s.mu.Lock()
	s.overlay = false
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Advance(t, ViewHome)
}

// SelectPlan preselects a plan and opens the contact view.
func (s *Shell) SelectPlan(label string) (View, error) {
	p, ok := catalog.FindPlan(label)
	if !ok {
		return s.State(), fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, strings.TrimSpace(label))
	}
	s.mu.Lock()
	s.plan = string(p.Name)
	s.mu.Unlock()
	return s.Navigate(ViewContact)
}

// LoginSuccess stores the session and moves to the dashboard after a pause.
func (s *Shell) LoginSuccess(ctx context.Context, session vault.UserSession) error {
	if err := s.store.SetSession(session); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	s.mu.Lock()
	s.user = &session
	s.mu.Unlock()

	t := s.Claim()
	if err := s.timing.wait(ctx, dashboardDelay); err != nil {
		return err
	}
	return s.Advance(t, ViewDashboard)
}

// Logout clears the session and returns home.
func (s *Shell) Logout() error {
	if err := s.store.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	s.mu.Lock()
	s.user = nil
	s.tab = TabBriefs
	s.mu.Unlock()
	s.Abandon()
	return s.Transition(ViewHome)
}

// SetSection records the page section in view with its first letter
// upper-cased ("why-us" becomes "Why-us").
func (s *Shell) SetSection(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		id = "home"
	}
	_, size := utf8.DecodeRuneInString(id)
	s.mu.Lock()
	name := s.upper.String(id[:size]) + id[size:]
	s.section = name
	s.mu.Unlock()
	return name
}

// Section returns the active section name.
func (s *Shell) Section() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.section
}

// SetTab switches the dashboard tab.
func (s *Shell) SetTab(tab Tab) error {
	switch tab {
	case TabBriefs, TabVisions, TabAccount:
	default:
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidInput, tab)
	}
	s.mu.Lock()
	s.tab = tab
	s.mu.Unlock()
	return nil
}
