package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kalambet/lumina/internal/catalog"
	"github.com/kalambet/lumina/internal/vault"
)

type ContactState string

const (
	ContactIdle    ContactState = "idle"
	ContactLoading ContactState = "loading"
	ContactSuccess ContactState = "success"
	ContactError   ContactState = "error"
)

// InquiryAnalyzer produces lead intelligence for a submitted form.
type InquiryAnalyzer interface {
	ProcessInquiry(ctx context.Context, form vault.ContactForm) vault.LeadIntelligence
}

// InquiryStore persists inquiries.
type InquiryStore interface {
	SaveInquiry(inq vault.Inquiry) (vault.Inquiry, error)
}

// PlanReader extracts text from an attached business plan document.
type PlanReader interface {
	Text(data []byte) (string, error)
}

// maxPlanText bounds how much attachment text is folded into the form.
const maxPlanText = 8000

// truncateRunes cuts s to at most n characters on a rune boundary.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

// Submission is a contact form with an optional business plan attachment.
type Submission struct {
	Form       vault.ContactForm
	Attachment []byte
}

// Contact is the inquiry form flow.
type Contact struct {
	*Machine[ContactState]

	analyzer InquiryAnalyzer
	store    InquiryStore
	reader   PlanReader
	timing   Timing

	mu     sync.Mutex
	result *vault.Inquiry
	err    error
}

// NewContact wires the form flow. reader may be nil, in which case
// attachments are rejected.
func NewContact(analyzer InquiryAnalyzer, store InquiryStore, reader PlanReader, timing Timing) *Contact {
	return &Contact{
		Machine: NewMachine(ContactIdle, map[ContactState][]ContactState{
			ContactIdle:    {ContactLoading},
			ContactLoading: {ContactSuccess, ContactError},
		}),
		analyzer: analyzer,
		store:    store,
		reader:   reader,
		timing:   timing,
	}
}

func validateForm(f vault.ContactForm) error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"name", f.Name},
		{"age", f.Age},
		{"email", f.Email},
		{"phone", f.Phone},
		{"businessPlans", f.BusinessPlans},
		{"websiteIdea", f.WebsiteIdea},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !strings.Contains(f.Email, "@") {
		return fmt.Errorf("%w: email %q", ErrInvalidInput, f.Email)
	}
	return nil
}

func (c *Contact) prepare(sub Submission) (vault.ContactForm, error) {
	form := sub.Form
	if len(sub.Attachment) > 0 {
		if c.reader == nil {
			return form, fmt.Errorf("%w: attachments are not accepted", ErrInvalidInput)
		}
		text, err := c.reader.Text(sub.Attachment)
		if err != nil {
			return form, fmt.Errorf("%w: reading business plan: %v", ErrInvalidInput, err)
		}
		text = strings.TrimSpace(text)
		text = truncateRunes(text, maxPlanText)
		if text != "" {
			if strings.TrimSpace(form.BusinessPlans) == "" {
				form.BusinessPlans = text
			} else {
				form.BusinessPlans = strings.TrimSpace(form.BusinessPlans) + "\n\n" + text
			}
		}
	}
	form.SelectedPlan = catalog.NormalizePlan(form.SelectedPlan)
	return form, validateForm(form)
}

// Submit validates the form, analyzes it and stores the inquiry. Invalid
// input leaves the flow idle. The inquiry is stored even when the flow
// is reset while the analysis runs; only the flow state is discarded.
func (c *Contact) Submit(ctx context.Context, sub Submission) (vault.Inquiry, error) {
	form, err := c.prepare(sub)
	if err != nil {
		return vault.Inquiry{}, err
	}
	t, err := c.Begin(ContactLoading, ContactIdle)
	if err != nil {
		return vault.Inquiry{}, err
	}

	intel := c.analyzer.ProcessInquiry(ctx, form)
	inq := vault.Inquiry{
		ContactForm:  form,
		ID:           uuid.NewString(),
		CreatedAt:    c.timing.now(),
		Intelligence: &intel,
	}
	saved, saveErr := c.store.SaveInquiry(inq)

	if !c.Valid(t) {
		return saved, ErrAbandoned
	}
	if saveErr != nil {
		c.setResult(nil, saveErr)
		if err := c.Advance(t, ContactError); err != nil {
			c.setResult(nil, nil)
			return vault.Inquiry{}, err
		}
		return vault.Inquiry{}, fmt.Errorf("saving inquiry: %w", saveErr)
	}
	c.setResult(&saved, nil)
	if err := c.Advance(t, ContactSuccess); err != nil {
		c.setResult(nil, nil)
		return saved, err
	}
	return saved, nil
}

func (c *Contact) setResult(inq *vault.Inquiry, err error) {
	c.mu.Lock()
	c.result, c.err = inq, err
	c.mu.Unlock()
}

// Result returns the last stored inquiry, if the flow reached success.
func (c *Contact) Result() (*vault.Inquiry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.err
}

// Reset returns to the empty form.
func (c *Contact) Reset() {
	c.setResult(nil, nil)
	c.Machine.Reset()
}
