package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalambet/lumina/internal/storage"
)

type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestVault(t *testing.T) (*Vault, *storage.Memory, *mockClock) {
	t.Helper()
	kv := storage.NewMemory()
	clock := &mockClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	v, err := New(kv, WithClock(clock))
	require.NoError(t, err)
	return v, kv, clock
}

func rawDocument(t *testing.T, kv storage.KV) Document {
	t.Helper()
	raw, ok, err := kv.GetItem(Key)
	require.NoError(t, err)
	require.True(t, ok, "vault key missing")
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestNewInitializesEmptyDocument(t *testing.T) {
	_, kv, clock := newTestVault(t)

	raw, ok, err := kv.GetItem(Key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, raw, `"inquiries":[]`)
	require.Contains(t, raw, `"session":null`)

	doc := rawDocument(t, kv)
	require.Equal(t, Version, doc.Metadata.Version)
	require.True(t, doc.Metadata.LastSync.Equal(clock.now))
}

func TestNewKeepsExistingDocument(t *testing.T) {
	kv := storage.NewMemory()
	v1, err := New(kv)
	require.NoError(t, err)
	_, err = v1.SaveInquiry(Inquiry{ID: "a"})
	require.NoError(t, err)

	v2, err := New(kv)
	require.NoError(t, err)
	got, err := v2.GetInquiries()
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSaveInquiryPrepends(t *testing.T) {
	v, _, _ := newTestVault(t)

	first := Inquiry{ID: "1", ContactForm: ContactForm{Name: "Ada"}}
	second := Inquiry{ID: "2", ContactForm: ContactForm{Name: "Grace"}}

	got, err := v.SaveInquiry(first)
	require.NoError(t, err)
	require.Equal(t, first, got)
	_, err = v.SaveInquiry(second)
	require.NoError(t, err)

	list, err := v.GetInquiries()
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "2", list[0].ID)
	require.Equal(t, "1", list[1].ID)
}

func TestSaveUpdatesLastSync(t *testing.T) {
	v, kv, clock := newTestVault(t)
	clock.Advance(time.Hour)

	_, err := v.SaveThesis("craft")
	require.NoError(t, err)

	doc := rawDocument(t, kv)
	require.True(t, doc.Metadata.LastSync.Equal(clock.now))
	require.Len(t, doc.Theses, 1)
	require.Equal(t, "craft", doc.Theses[0].Content)
	require.True(t, doc.Theses[0].CreatedAt.Equal(clock.now))
}

func TestSaveVisionStampsCreatedAt(t *testing.T) {
	v, _, clock := newTestVault(t)

	rec, err := v.SaveVision(VisionRecord{
		ID:       "v1",
		Industry: "Fintech",
		Keyword:  "trust",
		Data:     VisionData{Vision: "x", KeyFeatures: []string{"a"}, ColorPalette: []string{"#000000"}},
	})
	require.NoError(t, err)
	require.True(t, rec.CreatedAt.Equal(clock.now))

	list, err := v.GetVisions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "trust", list[0].Keyword)
}

func TestSaveAudit(t *testing.T) {
	v, _, _ := newTestVault(t)

	_, err := v.SaveAudit(AuditRecord{ID: "a1", BusinessName: "Acme", Score: 77})
	require.NoError(t, err)
	_, err = v.SaveAudit(AuditRecord{ID: "a2", BusinessName: "Beta", Score: 42})
	require.NoError(t, err)

	list, err := v.GetAudits()
	require.NoError(t, err)
	require.Equal(t, []string{"a2", "a1"}, []string{list[0].ID, list[1].ID})
}

func TestSessionLifecycle(t *testing.T) {
	v, _, clock := newTestVault(t)

	s, err := v.GetSession()
	require.NoError(t, err)
	require.Nil(t, s)

	sess := UserSession{Name: "Ada", Role: "Strategic Partner", Clearance: "Tier 1", Token: "LUM-ABCD-1234", LastLogin: clock.now}
	require.NoError(t, v.SetSession(sess))

	s, err = v.GetSession()
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "Ada", s.Name)

	require.NoError(t, v.ClearSession())
	s, err = v.GetSession()
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestSetSessionRejectsIncomplete(t *testing.T) {
	v, _, _ := newTestVault(t)

	err := v.SetSession(UserSession{Name: "Ada", Role: "r", Clearance: "Tier 1", LastLogin: time.Now()})
	require.ErrorIs(t, err, ErrInvalidSession)
	require.Contains(t, err.Error(), "token")

	s, err := v.GetSession()
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestClearAllReinitializes(t *testing.T) {
	v, kv, _ := newTestVault(t)
	_, err := v.SaveInquiry(Inquiry{ID: "x"})
	require.NoError(t, err)

	require.NoError(t, v.ClearAll())

	doc := rawDocument(t, kv)
	require.Empty(t, doc.Inquiries)
	require.Nil(t, doc.Session)
	require.Equal(t, Version, doc.Metadata.Version)
}

func TestExternalRemovalReinitializesOnRead(t *testing.T) {
	v, kv, _ := newTestVault(t)
	require.NoError(t, kv.RemoveItem(Key))

	list, err := v.GetInquiries()
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	_, ok, _ := kv.GetItem(Key)
	require.True(t, ok, "document should be rewritten after read")
}

func TestCorruptDocumentMovedAside(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.SetItem(Key, "{not json"))

	v, err := New(kv)
	require.NoError(t, err)

	list, err := v.GetInquiries()
	require.NoError(t, err)
	require.Empty(t, list)

	aside, ok, err := kv.GetItem(Key + ".corrupt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{not json", aside)
}

func TestVersionMismatchMovedAside(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.SetItem(Key, `{"inquiries":[{"id":"old"}],"metadata":{"version":"2.0.0"}}`))

	v, err := New(kv)
	require.NoError(t, err)
	list, err := v.GetInquiries()
	require.NoError(t, err)
	require.Empty(t, list)

	aside, ok, _ := kv.GetItem(Key + ".corrupt")
	require.True(t, ok)
	require.True(t, strings.Contains(aside, `"old"`))
}

func TestMissingListsNormalized(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.SetItem(Key, `{"metadata":{"version":"1.0.0"}}`))

	v, err := New(kv)
	require.NoError(t, err)
	visions, err := v.GetVisions()
	require.NoError(t, err)
	require.NotNil(t, visions)
}

func TestWriteErrorReturned(t *testing.T) {
	v, kv, _ := newTestVault(t)
	kv.SetQuota(64)

	_, err := v.SaveThesis(strings.Repeat("x", 128))
	require.Error(t, err)
	require.True(t, errors.Is(err, storage.ErrQuotaExceeded))
}

func TestSubscribeReceivesChanges(t *testing.T) {
	v, _, _ := newTestVault(t)
	changes, cancel := v.Subscribe()
	defer cancel()

	_, err := v.SaveInquiry(Inquiry{ID: "1"})
	require.NoError(t, err)
	require.NoError(t, v.ClearAll())

	require.Equal(t, "inquiries", (<-changes).Section)
	require.Equal(t, "cleared", (<-changes).Section)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	v, _, _ := newTestVault(t)
	changes, cancel := v.Subscribe()
	cancel()
	cancel()

	_, ok := <-changes
	require.False(t, ok)

	_, err := v.SaveThesis("after")
	require.NoError(t, err)
}

type stubWatcher struct {
	ch chan storage.Change
}

func (w stubWatcher) Watch(ctx context.Context) (<-chan storage.Change, error) {
	return w.ch, nil
}

func TestWatchForwardsExternalChanges(t *testing.T) {
	v, _, _ := newTestVault(t)
	changes, cancel := v.Subscribe()
	defer cancel()

	w := stubWatcher{ch: make(chan storage.Change, 2)}
	require.NoError(t, v.Watch(context.Background(), w))

	w.ch <- storage.Change{Key: "other"}
	w.ch <- storage.Change{Key: Key}
	close(w.ch)

	select {
	case c := <-changes:
		require.Equal(t, "external", c.Section)
	case <-time.After(2 * time.Second):
		t.Fatal("no change forwarded")
	}
}
