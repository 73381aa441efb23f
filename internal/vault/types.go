package vault

import (
	"errors"
	"fmt"
	"time"
)

// Key is the storage key the whole document lives under.
const Key = "lumina_vault_v1"

// Version is written into every document this package creates.
const Version = "1.0.0"

// ErrInvalidSession is returned when a session record is missing a field.
var ErrInvalidSession = errors.New("invalid session")

// Document is the single persisted record.
type Document struct {
	Inquiries []Inquiry      `json:"inquiries" yaml:"inquiries"`
	Visions   []VisionRecord `json:"visions" yaml:"visions"`
	Audits    []AuditRecord  `json:"audits" yaml:"audits"`
	Theses    []ThesisRecord `json:"theses" yaml:"theses"`
	Session   *UserSession   `json:"session" yaml:"session"`
	Metadata  Metadata       `json:"metadata" yaml:"metadata"`
}

type Metadata struct {
	LastSync time.Time `json:"lastSync" yaml:"lastSync"`
	Version  string    `json:"version" yaml:"version"`
}

// ContactForm is what a prospective client submits.
type ContactForm struct {
	Name          string `json:"name" yaml:"name"`
	Age           string `json:"age" yaml:"age"`
	Email         string `json:"email" yaml:"email"`
	Phone         string `json:"phone" yaml:"phone"`
	BusinessPlans string `json:"businessPlans" yaml:"businessPlans"`
	WebsiteIdea   string `json:"websiteIdea" yaml:"websiteIdea"`
	SelectedPlan  string `json:"selectedPlan" yaml:"selectedPlan"`
}

// Inquiry is a submitted contact form plus generated analysis.
type Inquiry struct {
	ContactForm  `yaml:",inline"`
	ID           string            `json:"id" yaml:"id"`
	CreatedAt    time.Time         `json:"createdAt" yaml:"createdAt"`
	Intelligence *LeadIntelligence `json:"intelligence,omitempty" yaml:"intelligence,omitempty"`
}

// LeadIntelligence is the model's assessment of an inquiry.
type LeadIntelligence struct {
	Priority         string         `json:"priority" yaml:"priority"`
	IndustryAnalysis string         `json:"industryAnalysis" yaml:"industryAnalysis"`
	SuggestedRoadmap []string       `json:"suggestedRoadmap" yaml:"suggestedRoadmap"`
	MarketSources    []MarketSource `json:"marketSources" yaml:"marketSources"`
}

type MarketSource struct {
	Title string `json:"title" yaml:"title"`
	URI   string `json:"uri" yaml:"uri"`
}

// VisionData is a generated creative direction.
type VisionData struct {
	Vision       string   `json:"vision" yaml:"vision"`
	KeyFeatures  []string `json:"keyFeatures" yaml:"keyFeatures"`
	ColorPalette []string `json:"colorPalette" yaml:"colorPalette"`
}

type VisionRecord struct {
	ID        string     `json:"id" yaml:"id"`
	Industry  string     `json:"industry" yaml:"industry"`
	Keyword   string     `json:"keyword" yaml:"keyword"`
	Data      VisionData `json:"data" yaml:"data"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
}

// AuditRecord is a persisted brand-scanner result.
type AuditRecord struct {
	ID              string    `json:"id" yaml:"id"`
	BusinessName    string    `json:"businessName" yaml:"businessName"`
	Industry        string    `json:"industry" yaml:"industry"`
	Score           int       `json:"score" yaml:"score"`
	Critique        string    `json:"critique" yaml:"critique"`
	Recommendations []string  `json:"recommendations" yaml:"recommendations"`
	CreatedAt       time.Time `json:"createdAt" yaml:"createdAt"`
}

type ThesisRecord struct {
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// UserSession is the signed-in identity. All fields are required.
type UserSession struct {
	Name      string    `json:"name" yaml:"name"`
	Role      string    `json:"role" yaml:"role"`
	Clearance string    `json:"clearance" yaml:"clearance"`
	Token     string    `json:"token" yaml:"token"`
	LastLogin time.Time `json:"lastLogin" yaml:"lastLogin"`
}

// Validate reports ErrInvalidSession naming the first empty field.
func (s UserSession) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidSession)
	case s.Role == "":
		return fmt.Errorf("%w: role is required", ErrInvalidSession)
	case s.Clearance == "":
		return fmt.Errorf("%w: clearance is required", ErrInvalidSession)
	case s.Token == "":
		return fmt.Errorf("%w: token is required", ErrInvalidSession)
	case s.LastLogin.IsZero():
		return fmt.Errorf("%w: lastLogin is required", ErrInvalidSession)
	}
	return nil
}
