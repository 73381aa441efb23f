// Package catalog holds the studio's fixed offering: pricing plans, services
// and the three-phase delivery process.
package catalog

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PlanType names a pricing tier.
type PlanType string

const (
	Regular PlanType = "Regular"
	Advance PlanType = "Advance"
	Premium PlanType = "Premium"
)

// Plan is a pricing tier. Price is in whole rupees.
type Plan struct {
	ID          string   `json:"id"`
	Name        PlanType `json:"name"`
	Price       int      `json:"-"`
	PriceLabel  string   `json:"price"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Popular     bool     `json:"isPopular,omitempty"`
}

// Service is an offering shown on the services page.
type Service struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Manifesto   string   `json:"manifesto"`
}

// Phase is a step of the delivery process.
type Phase struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
}

var printer = message.NewPrinter(language.English)

// FormatPrice renders a rupee amount with thousands grouping, e.g. ₹3,000.
func FormatPrice(rupees int) string {
	return printer.Sprintf("₹%d", rupees)
}

func plan(id string, name PlanType, price int, popular bool, description string, features ...string) Plan {
	return Plan{
		ID:          id,
		Name:        name,
		Price:       price,
		PriceLabel:  FormatPrice(price),
		Description: description,
		Features:    features,
		Popular:     popular,
	}
}

// Plans returns the pricing tiers in display order.
func Plans() []Plan {
	return []Plan{
		plan("plan-regular", Regular, 3000, false,
			"Perfect for local small businesses looking to establish their online presence with elegance.",
			"Clean & Modern UI",
			"Fully Responsive Design",
			"SEO Optimized Structure",
			"Contact Form Integration",
			"1 Year Hosting Support",
		),
		plan("plan-advance", Advance, 5000, true,
			"Dynamic experiences with interactive elements that captivate your local audience.",
			"3D Website Elements",
			"Advanced Motion Design",
			"Interactive UI Transitions",
			"Content Management System",
			"Performance Optimization",
			"Google Maps Integration",
		),
		plan("plan-premium", Premium, 8000, false,
			"The pinnacle of web design. Inspired by Apple & Bugatti, built for the elite.",
			"High-end 3D Immersive UI",
			"Luxury Visual Storytelling",
			"Ultra-Smooth Scroll Logic",
			"Premium Micro-Interactions",
			"Priority 24/7 Support",
			"Conversion-Rate Focused",
		),
	}
}

// Services returns the studio's services in display order.
func Services() []Service {
	return []Service{
		{
			Title:       "Custom Website Designing",
			Description: "Swiss-style precision architecture tailored to your brand's unique narrative. We hand-code every interaction to ensure perfection and performance.",
			Features:    []string{"Bespoke Layouts", "Motion Design", "Responsive Excellence", "Pixel Perfection"},
			Manifesto:   "Design is not just what it looks like and feels like. Design is how it works.",
		},
		{
			Title:       "Interactive AI Assistants",
			Description: "Gemini-powered digital concierges that convert visitors into leads 24/7. Your site becomes a living representative.",
			Features:    []string{"NLP Integration", "Live Lead Capture", "Knowledge Graph"},
			Manifesto:   "The future belongs to the curious. We build the intelligence to help you explore it.",
		},
		{
			Title:       "Premium Hosting Support",
			Description: "1-year complimentary enterprise-grade hosting. We ensure your flagship is always fast and secure.",
			Features:    []string{"99.9% Uptime", "Daily Backups", "SSL Security"},
			Manifesto:   "Speed is the fundamental unit of the digital experience.",
		},
		{
			Title:       "Portfolio Engineering",
			Description: "Cinematic showcases for your work. Designed for elite creatives who demand the best.",
			Features:    []string{"Case Study Frameworks", "Interactive Galleries"},
			Manifesto:   "Your work is your legacy. We give it the stage it deserves.",
		},
		{
			Title:       "SEO & Performance Ops",
			Description: "Lighthouse scores of 100. We optimize for dominance using technical excellence.",
			Features:    []string{"Core Web Vitals", "Technical SEO"},
			Manifesto:   "Visibility is a byproduct of pure technical excellence.",
		},
		{
			Title:       "Visual Brand Identity",
			Description: "Complete design systems. We architect the visual soul of your company touchpoints.",
			Features:    []string{"Logo Design", "Typography Systems"},
			Manifesto:   "A brand is the sum of every interaction. We make them count.",
		},
	}
}

// Phases returns the delivery process in order.
func Phases() []Phase {
	return []Phase{
		{ID: "01", Title: "Vision", Subtitle: "Discovery & Blueprint", Description: "We dive deep into your brand DNA. Through meticulous strategy sessions, we define the aesthetic and functional architecture of your digital flagship."},
		{ID: "02", Title: "Craft", Subtitle: "Artisan Engineering", Description: "Our studio begins the labor-intensive process of sculpting your site. We build with pixel-perfect precision and custom motion logic."},
		{ID: "03", Title: "Launch", Subtitle: "The Grand Unveiling", Description: "Deployment is just the beginning. We perform 50+ point quality checks before presenting your new legacy to the world."},
	}
}

// FindPlan matches a plan by name or id, ignoring case.
func FindPlan(name string) (Plan, bool) {
	name = strings.TrimSpace(name)
	for _, p := range Plans() {
		if strings.EqualFold(string(p.Name), name) || strings.EqualFold(p.ID, name) {
			return p, true
		}
	}
	return Plan{}, false
}

// NormalizePlan maps a free-form plan label to its canonical name. Labels
// that match no plan are returned trimmed but otherwise unchanged.
func NormalizePlan(label string) string {
	if p, ok := FindPlan(label); ok {
		return string(p.Name)
	}
	return strings.TrimSpace(label)
}

// FindService matches a service by title, ignoring case.
func FindService(title string) (Service, bool) {
	for _, s := range Services() {
		if strings.EqualFold(s.Title, strings.TrimSpace(title)) {
			return s, true
		}
	}
	return Service{}, false
}

// FindPhase matches a phase by id ("01") or title ("Craft").
func FindPhase(key string) (Phase, bool) {
	key = strings.TrimSpace(key)
	for _, p := range Phases() {
		if p.ID == key || strings.EqualFold(p.Title, key) {
			return p, true
		}
	}
	return Phase{}, false
}
