package flow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShellHydratesSession(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.SetSession(validSession()))

	sh, err := NewShell(v, testTiming(&recordingSleeper{}))
	require.NoError(t, err)
	st := sh.Snapshot()
	require.Equal(t, ViewHome, st.View)
	require.Equal(t, "Home", st.Section)
	require.NotNil(t, st.User)
	require.Equal(t, "Ada", st.User.Name)
}

func TestShellLoginRedirects(t *testing.T) {
	v := newTestVault(t)
	sh, err := NewShell(v, testTiming(&recordingSleeper{}))
	require.NoError(t, err)

	view, err := sh.Navigate(ViewDashboard)
	require.NoError(t, err)
	require.Equal(t, ViewLogin, view)

	require.NoError(t, sh.LoginSuccess(context.Background(), validSession()))
	require.Equal(t, ViewDashboard, sh.State())

	view, err = sh.Navigate(ViewLogin)
	require.NoError(t, err)
	require.Equal(t, ViewDashboard, view)

	sess, err := v.GetSession()
	require.NoError(t, err)
	require.NotNil(t, sess)
}

func TestShellLoginSuccessWaits(t *testing.T) {
	s := &recordingSleeper{}
	sh, err := NewShell(newTestVault(t), testTiming(s))
	require.NoError(t, err)

	require.NoError(t, sh.LoginSuccess(context.Background(), validSession()))
	require.Equal(t, []time.Duration{2000 * time.Millisecond}, s.Delays())
}

func TestShellLoginSuccessRejectsInvalidSession(t *testing.T) {
	sh, err := NewShell(newTestVault(t), testTiming(&recordingSleeper{}))
	require.NoError(t, err)

	bad := validSession()
	bad.Name = ""
	require.Error(t, sh.LoginSuccess(context.Background(), bad))
	require.Nil(t, sh.User())
	require.Equal(t, ViewHome, sh.State())
}

func TestShellLogout(t *testing.T) {
	v := newTestVault(t)
	require.NoError(t, v.SetSession(validSession()))
	sh, err := NewShell(v, testTiming(&recordingSleeper{}))
	require.NoError(t, err)
	_, err = sh.Navigate(ViewDashboard)
	require.NoError(t, err)
	require.NoError(t, sh.SetTab(TabAccount))

	require.NoError(t, sh.Logout())
	st := sh.Snapshot()
	require.Equal(t, ViewHome, st.View)
	require.Nil(t, st.User)
	require.Equal(t, TabBriefs, st.Tab)

	sess, err := v.GetSession()
	require.NoError(t, err)
	require.Nil(t, sess)
}

func TestShellStartProject(t *testing.T) {
	s := &recordingSleeper{}
	sh, err := NewShell(newTestVault(t), testTiming(s))
	require.NoError(t, err)
	_, err = sh.Navigate(ViewServices)
	require.NoError(t, err)

	require.NoError(t, sh.StartProject(context.Background(), "Hero Section"))
	st := sh.Snapshot()
	require.Equal(t, ViewHome, st.View)
	require.False(t, st.Overlay)
	require.Equal(t, "Hero Section", st.ProjectIntent)
	require.Equal(t, []time.Duration{1000 * time.Millisecond}, s.Delays())

	_, err = sh.Navigate(ViewContact)
	require.NoError(t, err)
	require.Empty(t, sh.Snapshot().ProjectIntent)
}

func TestShellSectionAndTabs(t *testing.T) {
	sh, err := NewShell(newTestVault(t), testTiming(&recordingSleeper{}))
	require.NoError(t, err)

	require.Equal(t, "Services", sh.SetSection("services"))
	require.Equal(t, "Why-us", sh.SetSection("why-us"))
	require.Equal(t, "Why-us", sh.Section())
	require.Equal(t, "Portfolio engineering", sh.SetSection("portfolio engineering"))
	require.Equal(t, "Home", sh.SetSection(""))

	require.ErrorIs(t, sh.SetTab("billing"), ErrInvalidInput)
	require.NoError(t, sh.SetTab(TabVisions))
	require.Equal(t, TabVisions, sh.Snapshot().Tab)
}

func TestShellSelectPlan(t *testing.T) {
	sh, err := NewShell(newTestVault(t), testTiming(&recordingSleeper{}))
	require.NoError(t, err)

	view, err := sh.SelectPlan("advance")
	require.NoError(t, err)
	require.Equal(t, ViewContact, view)
	require.Equal(t, "Advance", sh.Snapshot().SelectedPlan)

	_, err = sh.SelectPlan("platinum")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseView(t *testing.T) {
	v, err := ParseView(" Why-Us ")
	require.NoError(t, err)
	require.Equal(t, ViewWhyUs, v)

	_, err = ParseView("admin")
	require.ErrorIs(t, err, ErrInvalidInput)
}
