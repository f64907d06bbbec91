package emergency

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jllopis/swarm/pkg/core"
	"github.com/jllopis/swarm/pkg/llm"
	"github.com/jllopis/swarm/pkg/registry"
	"github.com/jllopis/swarm/pkg/swarm"
)

// TriageProvider is a deterministic llm.Provider for running the roster
// without a model server. The coordinator routes on keywords; specialists
// call their first tool once per user turn and then answer.
type TriageProvider struct {
	byPrompt    map[string]string
	coordinator string
}

var _ llm.Provider = (*TriageProvider)(nil)

type route struct {
	agent    string
	keywords []string
}

// First match wins.
var routes = []route{
	{"MedicalEvacuationSpecialist", []string{"chest pain", "heart", "breathing", "unconscious", "bleeding", "stroke", "dizzy", "injured", "medical evacuation"}},
	{"CommunicationCoordinator", []string{"lost contact", "haven't heard", "cell network", "can't reach", "trying to reach", "communication"}},
	{"DocumentationExpert", []string{"passport", "visa", "travel documents", "documentation"}},
	{"SecurityAnalyst", []string{"protest", "unrest", "security threat", "kidnap", "attack", "safety"}},
	{"AccommodationFinder", []string{"somewhere to stay", "accommodation", "shelter", "lodging", "place to stay"}},
	{"DisasterResponseExpert", []string{"earthquake", "hurricane", "flood", "wildfire", "tsunami", "typhoon", "disaster"}},
	{"InsuranceSpecialist", []string{"insurance", "claim", "coverage"}},
	{"MedicalAdvisor", []string{"medication", "vaccine", "health condition", "fever"}},
	{"BusinessContinuityAgent", []string{"business", "executive", "meeting", "conference"}},
	{"LogisticsOperator", []string{"transport", "route", "border", "flight", "train"}},
	{"LocalResourceLocator", []string{"translator", "local services", "fixer", "driver", "oxygen"}},
}

// Closing advice of specialists that have no tool.
var advice = map[string]string{
	"BusinessContinuityAgent":  "I'll prioritise critical personnel, book the first available alternatives and set up virtual participation as a fallback.",
	"LogisticsOperator":        "I'm planning a multi-stage route with a backup at each leg and will confirm border crossing requirements before departure.",
	"CommunicationCoordinator": "Try SMS and messaging apps on any available Wi-Fi, contact their hotels directly and register them with the embassy's locator service. Agree a fixed check-in time once contact is restored.",
	"InsuranceSpecialist":      "Keep every receipt and medical report. I'll request a pre-approval and ask about direct billing with the treating facility.",
	"LocalResourceLocator":     "I'm gathering verified local contacts: emergency services, a trusted driver and a translator near your location.",
}

// NewTriageProvider recognises agents of reg by their prompts.
func NewTriageProvider(reg *registry.Registry) (*TriageProvider, error) {
	p := &TriageProvider{byPrompt: make(map[string]string, reg.Len()), coordinator: Coordinator}
	for _, name := range reg.Names() {
		agent, err := reg.Resolve(name)
		if err != nil {
			return nil, err
		}
		p.byPrompt[agent.Prompt()] = name
	}
	if !reg.Has(p.coordinator) {
		names := reg.Names()
		if len(names) == 0 {
			return nil, fmt.Errorf("emergency: empty registry")
		}
		p.coordinator = names[0]
	}
	return p, nil
}

// Chat implements llm.Provider.
func (p *TriageProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := newConversation(req)
	agent := p.byPrompt[c.system]
	if agent == "" || agent == p.coordinator {
		return p.coordinate(c), nil
	}
	return p.specialize(agent, c), nil
}

func (p *TriageProvider) coordinate(c conversation) *llm.ChatResponse {
	if c.returnedTo(p.coordinator) {
		return &llm.ChatResponse{Content: "Thank you for your patience. The specialist has reviewed your situation. " +
			"Tell me if another aspect of the emergency needs attention."}
	}
	if target := routeFor(c.latest); target != "" {
		name := core.HandoffToolName(target)
		if c.offers(name) {
			return &llm.ChatResponse{
				Content:   "Connecting you with the " + target + ".",
				ToolCalls: []llm.ToolCall{llm.NewToolCall(c.callID(), name, nil)},
			}
		}
	}
	return &llm.ChatResponse{Content: "I'm here to help. To route your request I need a few details: " +
		"where are you, what kind of emergency is it (medical, natural disaster, security, documents, business) " +
		"and how many people are affected?"}
}

func (p *TriageProvider) specialize(agent string, c conversation) *llm.ChatResponse {
	tool := c.firstDomainTool()
	if tool != "" && !c.ran(tool) {
		return &llm.ChatResponse{
			ToolCalls: []llm.ToolCall{llm.NewToolCall(c.callID(), tool, toolArgs(tool, c))},
		}
	}

	var parts []string
	if tool != "" {
		parts = append(parts, summarize(tool, c.result(tool)))
	}
	if a, ok := advice[agent]; ok {
		parts = append(parts, a)
	}
	if len(parts) == 0 {
		parts = append(parts, "I've reviewed your situation and will follow up with next steps.")
	}
	return &llm.ChatResponse{Content: strings.Join(parts, " ")}
}

func routeFor(text string) string {
	lower := strings.ToLower(text)
	for _, r := range routes {
		if containsAny(lower, r.keywords...) {
			return r.agent
		}
	}
	return ""
}

// conversation is a read-only view of a chat request.
type conversation struct {
	system string
	latest string
	users  []string
	turn   []llm.Message
	tools  []llm.Tool
	size   int
}

func newConversation(req llm.ChatRequest) conversation {
	c := conversation{tools: req.Tools, size: len(req.Messages)}
	last := -1
	for i, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			if i == 0 {
				c.system = m.Content
			}
		case llm.RoleUser:
			c.users = append(c.users, m.Content)
			c.latest = m.Content
			last = i
		}
	}
	c.turn = req.Messages[last+1:]
	return c
}

func (c conversation) callID() string { return "triage_" + strconv.Itoa(c.size) }

func (c conversation) offers(name string) bool {
	for _, t := range c.tools {
		if t.Function.Name == name {
			return true
		}
	}
	return false
}

func (c conversation) firstDomainTool() string {
	for _, t := range c.tools {
		if !strings.HasPrefix(t.Function.Name, core.HandoffPrefix) {
			return t.Function.Name
		}
	}
	return ""
}

// ran reports whether tool already produced a result this user turn.
func (c conversation) ran(tool string) bool {
	return c.result(tool) != nil
}

func (c conversation) result(tool string) *llm.Message {
	for i := len(c.turn) - 1; i >= 0; i-- {
		if m := c.turn[i]; m.Role == llm.RoleTool && m.Name == tool {
			return &c.turn[i]
		}
	}
	return nil
}

func (c conversation) returnedTo(agent string) bool {
	ack := swarm.HandoffAck(agent)
	for _, m := range c.turn {
		if m.Role == llm.RoleTool && m.Content == ack {
			return true
		}
	}
	return false
}

// all is every user message of the session, oldest first.
func (c conversation) all() string { return strings.Join(c.users, "\n") }

var (
	countries = []struct{ name, alias string }{
		{"Ukraine", "ukrain"}, {"Haiti", "haiti"}, {"Afghanistan", "afghan"},
		{"Japan", "japan"}, {"Italy", "ital"}, {"Egypt", "egypt"},
		{"Mexico", "mexic"}, {"India", "india"}, {"Thailand", "thai"},
		{"Germany", "german"}, {"Poland", "polish"}, {"Poland", "poland"},
		{"United States", "united states"},
	}
	cities     = []string{"Mexico City", "Cairo", "Bangkok", "Tokyo", "Osaka", "Rome", "Milan", "Kyiv", "Lviv", "Delhi", "Mumbai"}
	groupSize  = regexp.MustCompile(`(?i)(?:family|team|group|party) of (\d+)|(\d+) (?:people|persons|travell?ers|engineers|colleagues|adults)`)
	historyRef = regexp.MustCompile(`(?i)history of ([^.,;]+)`)
)

// mentions returns every country mentioned in text, by position.
func mentions(text string) []string {
	lower := strings.ToLower(text)
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, c := range countries {
		if i := strings.Index(lower, c.alias); i >= 0 {
			hits = append(hits, hit{i, c.name})
		}
	}
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

func toolArgs(tool string, c conversation) map[string]any {
	all := c.all()
	lower := strings.ToLower(all)
	places := mentions(all)
	first, last := "unknown", "unknown"
	if len(places) > 0 {
		first, last = places[0], places[len(places)-1]
	}

	switch tool {
	case ToolAssessMedicalUrgency:
		args := map[string]any{"symptoms": c.latest}
		if m := historyRef.FindStringSubmatch(all); m != nil {
			args["medical_history"] = strings.TrimSpace(m[1])
		}
		return args

	case ToolCheckTravelAdvisory:
		return map[string]any{"country": first}

	case ToolFindEmergencyAccommodation:
		location := first
		for _, city := range cities {
			if strings.Contains(lower, strings.ToLower(city)) {
				location = city
				break
			}
		}
		args := map[string]any{"location": location, "num_people": peopleCount(all)}
		var needs []string
		if strings.Contains(lower, "wheelchair") {
			needs = append(needs, "wheelchair access")
		}
		if strings.Contains(lower, "children") {
			needs = append(needs, "young children")
		}
		if len(needs) > 0 {
			args["special_needs"] = strings.Join(needs, " and ")
		}
		return args

	case ToolCheckVisaRequirements:
		citizenship := "unknown"
		if containsAny(lower, "us citizen", "american", "u.s. citizen") {
			citizenship = "United States"
		}
		purpose := "emergency"
		switch {
		case containsAny(lower, "hospital", "medical", "chest pain", "heart"):
			purpose = "medical"
		case containsAny(lower, "evacuat", "earthquake", "flood", "border closure"):
			purpose = "evacuation"
		}
		return map[string]any{"citizenship": citizenship, "destination": last, "purpose": purpose}
	}
	return map[string]any{}
}

func peopleCount(text string) int {
	if m := groupSize.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if n, err := strconv.Atoi(g); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func summarize(tool string, msg *llm.Message) string {
	if msg == nil {
		return "I could not complete the lookup."
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		return "The " + tool + " lookup failed: " + msg.Content
	}

	switch tool {
	case ToolAssessMedicalUrgency:
		level, _ := payload["urgency_level"].(string)
		text := "Urgency assessment: " + level + "."
		switch level {
		case UrgencyCritical:
			text += " Call local emergency services now and keep the patient still. I'm arranging medical evacuation to the nearest equipped hospital."
		case UrgencyUrgent:
			text += " Seek care at the nearest hospital within the next few hours."
		default:
			text += " Monitor the symptoms and visit a clinic if they persist."
		}
		return text

	case ToolCheckTravelAdvisory:
		text := fmt.Sprintf("Current advisory for %v: %v.", payload["country"], payload["advisory_level"])
		if risks := stringList(payload["risks"]); len(risks) > 0 {
			text += " Main risks: " + strings.Join(risks, ", ") + "."
		}
		return text + " Stay away from affected areas and keep your embassy's emergency number at hand."

	case ToolFindEmergencyAccommodation:
		var names []string
		if opts, ok := payload["available_options"].([]any); ok {
			for _, o := range opts {
				if m, ok := o.(map[string]any); ok {
					names = append(names, fmt.Sprint(m["name"]))
				}
			}
		}
		return fmt.Sprintf("Available options in %v: %s. %v", payload["location"], strings.Join(names, "; "), payload["booking_instructions"])

	case ToolCheckVisaRequirements:
		docs := stringList(payload["documentation_needed"])
		return fmt.Sprintf("Processing time: %v. You will need: %s. Contact: %v.",
			payload["processing_time"], strings.Join(docs, ", "), payload["contact"])
	}
	return "Result: " + msg.Content
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
