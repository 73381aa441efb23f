package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/lumina/internal/gemini"
	"github.com/kalambet/lumina/internal/vault"
)

// Audit is a brand aesthetic score with critique.
type Audit struct {
	Score           int      `json:"score"`
	Critique        string   `json:"critique"`
	Recommendations []string `json:"recommendations"`
}

// Verification is the outcome of an identity check.
type Verification struct {
	WelcomeMessage string            `json:"welcomeMessage"`
	Session        vault.UserSession `json:"userProfile"`
}

// ServiceInsight is a deep dive into one studio service.
type ServiceInsight struct {
	StrategicAdvice     string `json:"strategic_advice"`
	ROIImpact           string `json:"roi_impact"`
	TechnicalComplexity string `json:"technical_complexity"`
	FutureOutlook2025   string `json:"future_outlook_2025"`
}

func jsonConfig(schema *gemini.Schema) *gemini.GenerationConfig {
	return &gemini.GenerationConfig{ResponseMimeType: "application/json", ResponseSchema: schema}
}

func str() *gemini.Schema { return &gemini.Schema{Type: gemini.TypeString} }

func strList() *gemini.Schema {
	return &gemini.Schema{Type: gemini.TypeArray, Items: str()}
}

func object(props map[string]*gemini.Schema, required ...string) *gemini.Schema {
	return &gemini.Schema{Type: gemini.TypeObject, Properties: props, Required: required}
}

// decodeJSON parses the model's text, treating an empty reply as "{}".
func decodeJSON(text string, v any) error {
	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decoding model reply: %w", err)
	}
	return nil
}

// BrandThesis writes the studio manifesto.
func (g *Gateway) BrandThesis(ctx context.Context) string {
	return Call(ctx, g, Operation[string]{
		Name: "brand_thesis",
		Invoke: func(ctx context.Context) (string, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents:         []gemini.Content{gemini.UserText(thesisPrompt)},
				GenerationConfig: &gemini.GenerationConfig{Temperature: gemini.Float(0.9)},
			})
			if err != nil {
				return "", err
			}
			if text == "" {
				return "Our digital legacy is defined by the intersection of artisan craft and neural intelligence.", nil
			}
			return text, nil
		},
		Fallback: func() string {
			return "Lumina Digital: Where every pixel is a promise of transcendence. We build not for today, but for the history of your brand."
		},
	})
}

func fallbackVision() vault.VisionData {
	return vault.VisionData{
		Vision:       "A revolutionary digital sanctuary where every pixel serves the purpose of brand dominance.",
		KeyFeatures:  []string{"Neural-linked Navigation", "Atmospheric Layouts", "Bespoke Micro-transitions"},
		ColorPalette: []string{"#000000", "#EAB308", "#FFFFFF"},
	}
}

// DigitalVision sketches a future website for an industry and aesthetic.
func (g *Gateway) DigitalVision(ctx context.Context, industry, keyword string) vault.VisionData {
	schema := object(map[string]*gemini.Schema{
		"vision":       str(),
		"keyFeatures":  strList(),
		"colorPalette": strList(),
	}, "vision", "keyFeatures", "colorPalette")

	return Call(ctx, g, Operation[vault.VisionData]{
		Name: "digital_vision",
		Invoke: func(ctx context.Context) (vault.VisionData, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents:         []gemini.Content{gemini.UserText(visionPrompt(industry, keyword))},
				GenerationConfig: jsonConfig(schema),
			})
			if err != nil {
				return vault.VisionData{}, err
			}
			var v vault.VisionData
			if err := decodeJSON(text, &v); err != nil {
				return vault.VisionData{}, err
			}
			return v, nil
		},
		Fallback: fallbackVision,
	})
}

// BrandAudit scores a business's premium digital potential.
func (g *Gateway) BrandAudit(ctx context.Context, name, industry string) Audit {
	schema := object(map[string]*gemini.Schema{
		"score":           {Type: gemini.TypeNumber},
		"critique":        str(),
		"recommendations": strList(),
	}, "score", "critique", "recommendations")

	return Call(ctx, g, Operation[Audit]{
		Name: "brand_audit",
		Invoke: func(ctx context.Context) (Audit, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents:         []gemini.Content{gemini.UserText(auditPrompt(name, industry))},
				GenerationConfig: jsonConfig(schema),
			})
			if err != nil {
				return Audit{}, err
			}
			var raw struct {
				Score           float64  `json:"score"`
				Critique        string   `json:"critique"`
				Recommendations []string `json:"recommendations"`
			}
			if err := decodeJSON(text, &raw); err != nil {
				return Audit{}, err
			}
			return Audit{
				Score:           int(math.Round(raw.Score)),
				Critique:        raw.Critique,
				Recommendations: raw.Recommendations,
			}, nil
		},
		Fallback: func() Audit {
			return Audit{
				Score:           42,
				Critique:        "Your current digital presence likely lacks the kinetic soul required for 2025 dominance.",
				Recommendations: []string{"Implement physics-based motion", "Adopt Swiss-minimalist spacing", "Integrate AI-driven concierge"},
			}
		},
	})
}

// ProcessInquiry produces lead intelligence for a submitted form.
func (g *Gateway) ProcessInquiry(ctx context.Context, form vault.ContactForm) vault.LeadIntelligence {
	schema := object(map[string]*gemini.Schema{
		"priority":         {Type: gemini.TypeString, Enum: []string{"High", "Medium", "Low"}},
		"industryAnalysis": str(),
		"suggestedRoadmap": strList(),
	}, "priority", "industryAnalysis", "suggestedRoadmap")

	return Call(ctx, g, Operation[vault.LeadIntelligence]{
		Name: "process_inquiry",
		Invoke: func(ctx context.Context) (vault.LeadIntelligence, error) {
			text, err := g.generate(ctx, g.cfg.ProModel, gemini.Request{
				Contents:         []gemini.Content{gemini.UserText(inquiryPrompt(form))},
				GenerationConfig: jsonConfig(schema),
			})
			if err != nil {
				return vault.LeadIntelligence{}, err
			}
			var li vault.LeadIntelligence
			if err := decodeJSON(text, &li); err != nil {
				return vault.LeadIntelligence{}, err
			}
			if li.Priority == "" {
				li.Priority = "Medium"
			}
			if li.IndustryAnalysis == "" {
				li.IndustryAnalysis = "Analysis complete."
			}
			if li.SuggestedRoadmap == nil {
				li.SuggestedRoadmap = []string{"Consultation", "Design", "Launch"}
			}
			li.MarketSources = []vault.MarketSource{}
			return li, nil
		},
		Fallback: func() vault.LeadIntelligence {
			return vault.LeadIntelligence{
				Priority:         "Medium",
				IndustryAnalysis: "Standard inquiry received. Industry research currently queued.",
				SuggestedRoadmap: []string{"Discovery Session", "UX Strategy", "Brand Development"},
				MarketSources:    []vault.MarketSource{},
			}
		},
	})
}

// PhaseDetails explains one phase of the delivery process.
func (g *Gateway) PhaseDetails(ctx context.Context, phase string) string {
	return Call(ctx, g, Operation[string]{
		Name: "phase_details",
		Invoke: func(ctx context.Context) (string, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents: []gemini.Content{gemini.UserText(phasePrompt(phase))},
				GenerationConfig: &gemini.GenerationConfig{
					Temperature:    gemini.Float(0.8),
					ThinkingConfig: &gemini.ThinkingConfig{ThinkingBudget: 0},
				},
			})
			if err != nil {
				return "", err
			}
			if text == "" {
				return "Detailed information for this phase is currently being refined by our strategy team.", nil
			}
			return text, nil
		},
		Fallback: func() string {
			return "Our methodology ensures every project exceeds industry standards through rigorous quality assurance and creative excellence."
		},
	})
}

var tokenPattern = regexp.MustCompile(`^LUM-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func generateToken() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LUM-" + id[:4] + "-" + id[4:8]
}

func fallbackName(email string) string {
	if email == "" {
		return "Strategic Partner"
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

// VerifyIdentity welcomes a signing-in user and assigns their profile.
// The returned session always passes vault.UserSession.Validate.
func (g *Gateway) VerifyIdentity(ctx context.Context, provider, email string) Verification {
	schema := object(map[string]*gemini.Schema{
		"welcomeMessage": str(),
		"securityToken":  str(),
		"name":           str(),
		"role":           str(),
		"clearance":      str(),
	}, "welcomeMessage", "securityToken", "name", "role", "clearance")

	now := func() time.Time { return g.clock.Now().UTC() }
	fallback := func() Verification {
		return Verification{
			WelcomeMessage: "Welcome back to Lumina. Your digital legacy is ready.",
			Session: vault.UserSession{
				Name:      fallbackName(email),
				Role:      "Strategic Partner",
				Clearance: "Tier 1",
				Token:     "LUM-SYST-8821",
				LastLogin: now(),
			},
		}
	}

	return Call(ctx, g, Operation[Verification]{
		Name: "verify_identity",
		Invoke: func(ctx context.Context) (Verification, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents: []gemini.Content{gemini.UserText(identityPrompt(provider, email))},
				GenerationConfig: &gemini.GenerationConfig{
					ResponseMimeType: "application/json",
					ResponseSchema:   schema,
					ThinkingConfig:   &gemini.ThinkingConfig{ThinkingBudget: 0},
				},
			})
			if err != nil {
				return Verification{}, err
			}
			var raw struct {
				WelcomeMessage string `json:"welcomeMessage"`
				SecurityToken  string `json:"securityToken"`
				Name           string `json:"name"`
				Role           string `json:"role"`
				Clearance      string `json:"clearance"`
			}
			if err := decodeJSON(text, &raw); err != nil {
				return Verification{}, err
			}

			v := fallback()
			if raw.WelcomeMessage != "" {
				v.WelcomeMessage = raw.WelcomeMessage
			}
			if raw.Name != "" {
				v.Session.Name = raw.Name
			}
			if raw.Role != "" {
				v.Session.Role = raw.Role
			}
			if raw.Clearance != "" {
				v.Session.Clearance = raw.Clearance
			}
			token := strings.ToUpper(strings.TrimSpace(raw.SecurityToken))
			if !tokenPattern.MatchString(token) {
				token = generateToken()
			}
			v.Session.Token = token
			return v, nil
		},
		Fallback: fallback,
	})
}

var complexities = map[string]bool{"Low": true, "Medium": true, "High": true, "Extreme": true}

// ServiceInsight analyses the value of one studio service.
func (g *Gateway) ServiceInsight(ctx context.Context, service string) ServiceInsight {
	schema := object(map[string]*gemini.Schema{
		"strategic_advice":     {Type: gemini.TypeString, Description: "A profound strategic tip for the client."},
		"roi_impact":           {Type: gemini.TypeString, Description: "How this service directly increases revenue or prestige."},
		"technical_complexity": {Type: gemini.TypeString, Enum: []string{"Low", "Medium", "High", "Extreme"}},
		"future_outlook_2025":  {Type: gemini.TypeString, Description: "What happens with this technology/service in 2025."},
	}, "strategic_advice", "roi_impact", "technical_complexity", "future_outlook_2025")

	fallback := func() ServiceInsight {
		return ServiceInsight{
			StrategicAdvice:     "Precision architecture designed for high-conversion performance.",
			ROIImpact:           "Increases brand equity and customer lifetime value through superior UX.",
			TechnicalComplexity: "High",
			FutureOutlook2025:   "Total immersion and AI-driven personalization will be standard.",
		}
	}

	return Call(ctx, g, Operation[ServiceInsight]{
		Name: "service_insight",
		Invoke: func(ctx context.Context) (ServiceInsight, error) {
			text, err := g.generate(ctx, g.cfg.TextModel, gemini.Request{
				Contents: []gemini.Content{gemini.UserText(insightPrompt(service))},
				GenerationConfig: &gemini.GenerationConfig{
					ResponseMimeType: "application/json",
					ResponseSchema:   schema,
					ThinkingConfig:   &gemini.ThinkingConfig{ThinkingBudget: 0},
				},
			})
			if err != nil {
				return ServiceInsight{}, err
			}
			var si ServiceInsight
			if err := decodeJSON(text, &si); err != nil {
				return ServiceInsight{}, err
			}
			if !complexities[si.TechnicalComplexity] {
				si.TechnicalComplexity = fallback().TechnicalComplexity
			}
			return si, nil
		},
		Fallback: fallback,
	})
}

// AskConcierge streams the concierge's reply to message. History holds the
// prior turns, oldest first. Errors are returned to the caller.
func (g *Gateway) AskConcierge(ctx context.Context, message, section string, history []gemini.Content) (*gemini.Stream, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.ask_concierge")
	defer span.End()

	contents := make([]gemini.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, gemini.UserText(message))

	stream, err := g.client.StreamGenerateContent(ctx, g.cfg.TextModel, gemini.Request{
		Contents:          contents,
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: ConciergeInstruction(section)}}},
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:    gemini.Float(0.7),
			TopP:           gemini.Float(0.95),
			ThinkingConfig: &gemini.ThinkingConfig{ThinkingBudget: 0},
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("asking concierge: %w", err)
	}
	return stream, nil
}
