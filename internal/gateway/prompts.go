package gateway

import (
	"fmt"
	"strings"

	"github.com/kalambet/lumina/internal/vault"
)

// Greeting is the concierge's required first line.
const Greeting = "Hey I am mini the virtual ai assistant of Lumina studio and how can i help you"

const thesisPrompt = `Write a "Lumina Digital Thesis". This is a short, poetic, and high-end strategic manifesto for local business owners.
It should discuss "The Death of the Template," "The Birth of the Digital Flagship," and "The Legacy of Kinetic Design."
Tone: Apple-inspired, philosophical, authoritative, and luxury.
Length: ~250 words.`

func visionPrompt(industry, keyword string) string {
	return fmt.Sprintf(`Architect a "Success Vision" for a business in the %s industry with a %s aesthetic.
Describe their future digital flagship website in a cinematic, professional way.
Identify 3 unique high-end features and a 3-color premium hex palette.`, industry, keyword)
}

func auditPrompt(name, industry string) string {
	return fmt.Sprintf(`Perform a Lumina-grade Aesthetic Audit for a business named %q in the %q industry.
Evaluate their potential "Premium Digital Score" out of 100.
Provide a sophisticated, short critique and 3 high-end architectural recommendations to move them from 'standard' to 'luxury'.`, name, industry)
}

func inquiryPrompt(f vault.ContactForm) string {
	return fmt.Sprintf(`Perform a strategic backend analysis for a new project inquiry at Lumina Digital.

CLIENT DOSSIER:
- Name: %s
- Age: %s
- Investment Tier: %s
- Business Vision: %s
- Website Concept/Idea: %s

TASKS:
1. Analyze digital market trends for the specific "Website Concept" described.
2. Categorize project priority (High/Medium/Low) based on the clarity of the vision and age of the lead.
3. Create a 4-step digital roadmap tailored to their "Business Vision".
4. Synthesize industry research specific to their sector.`,
		f.Name, f.Age, f.SelectedPlan, f.BusinessPlans, f.WebsiteIdea)
}

func phasePrompt(phase string) string {
	return fmt.Sprintf(`Explain the %q phase of Lumina Digital Studio's web development process.
Lumina is an elite, Apple-inspired agency.
Provide a sophisticated, inspiring, and professional explanation of what this phase entails for a local business owner.
Focus on transparency, craftsmanship, and the value of high-end design.`, phase)
}

func identityPrompt(provider, email string) string {
	if email == "" {
		email = "auth-handshake-" + strings.ToLower(provider) + "@secure.lumina.studio"
	}
	return fmt.Sprintf(`Perform an identity verification for a user logging in via %s.
The email provided (if any) is %s.

Requirements:
1. Create a premium, Apple-inspired welcoming phrase.
2. Generate a unique alphanumeric security token (format: LUM-XXXX-XXXX).
3. Assign a high-end business role (e.g., Strategic Partner, Lead Visionary).
4. Assign a clearance level (Tier 1-3).
5. Extract or invent a professional name based on the email/provider.`, provider, email)
}

func insightPrompt(service string) string {
	return fmt.Sprintf(`Provide an elite-level strategic analysis for the service: %q.
Assume the client is a premium local business owner looking to scale.
Analyze the strategic value, ROI potential, technical difficulty, and the 2025 trend outlook for this specific capability.`, service)
}

// ConciergeInstruction is the text-chat system instruction.
func ConciergeInstruction(section string) string {
	var b strings.Builder
	b.WriteString(`You are Mini, the luxury-focused AI Digital Concierge for Lumina Digital Studio.

OWNER INFORMATION (KNOWLEDGE BASE):
- Owner: Nishan Kumar Prusty.
- Background: Nishan is a B.Tech final year student building a startup to help local brands with premium websites.
- Contact: Reach him or the team via the "Contact" section or the phone number in the footer.
- IMPORTANT RULE: DO NOT mention Nishan Kumar Prusty or the owner's background in the initial greeting. ONLY share this information if the user specifically asks about the owner, the team, the founder, or how to contact the person in charge.

GREETING PROTOCOL:
- Your FIRST greeting MUST be exactly: "` + Greeting + `"

AGENCY CONTEXT:
- Lumina Digital: Apple-inspired, premium, minimal.
- Pricing: Regular (₹3k), Advance (₹5k), Premium (₹8k).

BEHAVIOR:
- Be conversational, acknowledge user input before answering.
- Act as a strategic partner.`)
	if section != "" {
		fmt.Fprintf(&b, "\n- Context: You are currently on the %q section.", section)
	}
	return b.String()
}

// LiveInstruction is the voice-session system instruction.
func LiveInstruction(section string) string {
	return `You are Mini, the luxury-focused AI assistant for Lumina Digital Studio.

IDENTITY:
- GREETING: Always start with exactly: "` + Greeting + `"
- OWNER KNOWLEDGE (CONFIDENTIAL): Nishan Kumar Prusty is the owner. He is a B.Tech final year student building a startup for local brands. Reach him via the "Contact" section or the phone number in the footer.
- CRITICAL RULE: DO NOT mention Nishan Kumar Prusty or the founder in your first greeting. ONLY provide information about him if the user specifically asks "Who is the owner?", "Tell me about the team", "Who is the founder?", or "How can I contact the owner?".

STYLE:
- Acknowledge spoken input warmly (e.g. "I hear you," "That's a great vision").
- Be conversational and professional.
- Context: You are currently on the "` + section + `" section.`
}

// LiveGreetingPrompt is sent as the first user turn of a voice session.
const LiveGreetingPrompt = `Greet the user by saying exactly: "` + Greeting + `". Do not mention the owner or founder yet.`
