package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/lumina/internal/storage"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Watcher is implemented by storage backends that can report writes made by
// other processes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan storage.Change, error)
}

// Change describes a write to the document.
type Change struct {
	// Section is the part of the document that changed: inquiries, visions,
	// audits, theses, session, cleared or external.
	Section string    `json:"section"`
	At      time.Time `json:"at"`
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the clock used for lastSync and record timestamps.
func WithClock(c Clock) Option {
	return func(v *Vault) { v.clock = c }
}

// WithLogger overrides the logger used for recovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) { v.logger = l }
}

// Vault is the persistent studio document. Every mutation reads the whole
// document, changes it, and writes it back under a mutex.
type Vault struct {
	kv     storage.KV
	clock  Clock
	logger *slog.Logger

	mu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// New returns a Vault over kv, writing an empty document if none exists.
func New(kv storage.KV, opts ...Option) (*Vault, error) {
	v := &Vault{
		kv:     kv,
		clock:  realClock{},
		logger: slog.Default(),
		subs:   make(map[int]chan Change),
	}
	for _, o := range opts {
		o(v)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) emptyDocument() Document {
	return Document{
		Inquiries: []Inquiry{},
		Visions:   []VisionRecord{},
		Audits:    []AuditRecord{},
		Theses:    []ThesisRecord{},
		Metadata: Metadata{
			LastSync: v.clock.Now().UTC(),
			Version:  Version,
		},
	}
}

func (v *Vault) initialize() (Document, error) {
	doc := v.emptyDocument()
	data, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("encoding vault: %w", err)
	}
	if err := v.kv.SetItem(Key, string(data)); err != nil {
		return Document{}, fmt.Errorf("initializing vault: %w", err)
	}
	return doc, nil
}

// load returns the stored document, creating or recovering it as needed.
// Caller must hold v.mu.
func (v *Vault) load() (Document, error) {
	raw, ok, err := v.kv.GetItem(Key)
	if err != nil {
		return Document{}, fmt.Errorf("reading vault: %w", err)
	}
	if !ok {
		return v.initialize()
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return v.recover(raw, fmt.Errorf("decoding: %w", err))
	}
	if !compatibleVersion(doc.Metadata.Version) {
		return v.recover(raw, fmt.Errorf("unsupported version %q", doc.Metadata.Version))
	}
	doc.normalize()
	return doc, nil
}

// recover moves an unreadable document aside and starts a fresh one.
func (v *Vault) recover(raw string, cause error) (Document, error) {
	v.logger.Warn("vault document unreadable, starting fresh", "key", Key, "error", cause)
	if err := v.kv.SetItem(Key+".corrupt", raw); err != nil {
		v.logger.Warn("could not preserve unreadable vault document", "error", err)
	}
	return v.initialize()
}

func compatibleVersion(version string) bool {
	major, _, _ := strings.Cut(version, ".")
	return major == "1"
}

func (d *Document) normalize() {
	if d.Inquiries == nil {
		d.Inquiries = []Inquiry{}
	}
	if d.Visions == nil {
		d.Visions = []VisionRecord{}
	}
	if d.Audits == nil {
		d.Audits = []AuditRecord{}
	}
	if d.Theses == nil {
		d.Theses = []ThesisRecord{}
	}
}

// save stamps lastSync and writes doc. Caller must hold v.mu.
func (v *Vault) save(doc Document) error {
	doc.Metadata.LastSync = v.clock.Now().UTC()
	if doc.Metadata.Version == "" {
		doc.Metadata.Version = Version
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding vault: %w", err)
	}
	if err := v.kv.SetItem(Key, string(data)); err != nil {
		return fmt.Errorf("writing vault: %w", err)
	}
	return nil
}

// update runs fn on the current document and persists the result.
func (v *Vault) update(section string, fn func(*Document)) error {
	v.mu.Lock()
	doc, err := v.load()
	if err != nil {
		v.mu.Unlock()
		return err
	}
	fn(&doc)
	err = v.save(doc)
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.publish(section)
	return nil
}

func (v *Vault) read() (Document, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.load()
}

// Snapshot returns the full document.
func (v *Vault) Snapshot() (Document, error) {
	return v.read()
}

// --- Inquiries ---

// SaveInquiry prepends inq and returns it unchanged.
func (v *Vault) SaveInquiry(inq Inquiry) (Inquiry, error) {
	err := v.update("inquiries", func(d *Document) {
		d.Inquiries = append([]Inquiry{inq}, d.Inquiries...)
	})
	if err != nil {
		return Inquiry{}, err
	}
	return inq, nil
}

// GetInquiries returns inquiries newest first.
func (v *Vault) GetInquiries() ([]Inquiry, error) {
	doc, err := v.read()
	if err != nil {
		return nil, err
	}
	return doc.Inquiries, nil
}

// --- Visions ---

// SaveVision stamps CreatedAt and prepends the record.
func (v *Vault) SaveVision(rec VisionRecord) (VisionRecord, error) {
	rec.CreatedAt = v.clock.Now().UTC()
	err := v.update("visions", func(d *Document) {
		d.Visions = append([]VisionRecord{rec}, d.Visions...)
	})
	if err != nil {
		return VisionRecord{}, err
	}
	return rec, nil
}

func (v *Vault) GetVisions() ([]VisionRecord, error) {
	doc, err := v.read()
	if err != nil {
		return nil, err
	}
	return doc.Visions, nil
}

// --- Audits ---

// SaveAudit stamps CreatedAt when unset and prepends the record.
func (v *Vault) SaveAudit(rec AuditRecord) (AuditRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = v.clock.Now().UTC()
	}
	err := v.update("audits", func(d *Document) {
		d.Audits = append([]AuditRecord{rec}, d.Audits...)
	})
	if err != nil {
		return AuditRecord{}, err
	}
	return rec, nil
}

func (v *Vault) GetAudits() ([]AuditRecord, error) {
	doc, err := v.read()
	if err != nil {
		return nil, err
	}
	return doc.Audits, nil
}

// --- Theses ---

func (v *Vault) SaveThesis(content string) (ThesisRecord, error) {
	rec := ThesisRecord{Content: content, CreatedAt: v.clock.Now().UTC()}
	err := v.update("theses", func(d *Document) {
		d.Theses = append([]ThesisRecord{rec}, d.Theses...)
	})
	if err != nil {
		return ThesisRecord{}, err
	}
	return rec, nil
}

func (v *Vault) GetTheses() ([]ThesisRecord, error) {
	doc, err := v.read()
	if err != nil {
		return nil, err
	}
	return doc.Theses, nil
}

// --- Session ---

// SetSession validates s and stores it as the current session.
func (v *Vault) SetSession(s UserSession) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return v.update("session", func(d *Document) {
		d.Session = &s
	})
}

// GetSession returns the current session, or nil when signed out.
func (v *Vault) GetSession() (*UserSession, error) {
	doc, err := v.read()
	if err != nil {
		return nil, err
	}
	return doc.Session, nil
}

func (v *Vault) ClearSession() error {
	return v.update("session", func(d *Document) {
		d.Session = nil
	})
}

// ClearAll removes the document and writes a fresh one.
func (v *Vault) ClearAll() error {
	v.mu.Lock()
	if err := v.kv.RemoveItem(Key); err != nil {
		v.mu.Unlock()
		return fmt.Errorf("clearing vault: %w", err)
	}
	_, err := v.initialize()
	v.mu.Unlock()
	if err != nil {
		return err
	}
	v.publish("cleared")
	return nil
}

// --- Change notifications ---

// Subscribe returns a channel of changes and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (v *Vault) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)

	v.subMu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	v.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.subMu.Lock()
			delete(v.subs, id)
			v.subMu.Unlock()
			close(ch)
		})
	}
}

func (v *Vault) publish(section string) {
	c := Change{Section: section, At: v.clock.Now().UTC()}

	v.subMu.Lock()
	defer v.subMu.Unlock()
	for _, ch := range v.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// Watch forwards changes to the vault key reported by w to subscribers
// until ctx is cancelled.
func (v *Vault) Watch(ctx context.Context, w Watcher) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching vault storage: %w", err)
	}
	go func() {
		for c := range changes {
			if c.Key == Key {
				v.publish("external")
			}
		}
	}()
	return nil
}
