package emergency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jllopis/swarm/pkg/core"
)

// Tool names as the model sees them.
const (
	ToolAssessMedicalUrgency       = "assess_medical_urgency"
	ToolCheckTravelAdvisory        = "check_travel_advisory"
	ToolFindEmergencyAccommodation = "find_emergency_accommodation"
	ToolCheckVisaRequirements      = "check_visa_requirements"
)

// Urgency levels returned by AssessMedicalUrgency.
const (
	UrgencyRoutine  = "ROUTINE"
	UrgencyUrgent   = "URGENT"
	UrgencyCritical = "CRITICAL"
)

var criticalSymptoms = []string{
	"chest pain", "difficulty breathing", "unconscious", "severe bleeding",
	"stroke", "heart attack", "severe allergic", "anaphylaxis",
}

type advisory struct {
	level string
	risks []string
}

var advisories = map[string]advisory{
	"ukraine":     {"DO NOT TRAVEL", []string{"armed conflict", "civil unrest"}},
	"haiti":       {"DO NOT TRAVEL", []string{"kidnapping", "civil unrest"}},
	"afghanistan": {"DO NOT TRAVEL", []string{"terrorism", "kidnapping"}},
	"japan":       {"EXERCISE NORMAL PRECAUTIONS", []string{}},
	"italy":       {"EXERCISE NORMAL PRECAUTIONS", []string{}},
	"egypt":       {"EXERCISE INCREASED CAUTION", []string{"terrorism"}},
	"mexico":      {"EXERCISE INCREASED CAUTION", []string{"crime", "kidnapping"}},
	"india":       {"EXERCISE INCREASED CAUTION", []string{"crime", "terrorism"}},
}

// MedicalAssessment is the result of assess_medical_urgency.
type MedicalAssessment struct {
	UrgencyLevel       string `json:"urgency_level"`
	AssessmentTime     string `json:"assessment_time"`
	RequiresEvacuation bool   `json:"requires_evacuation"`
	Recommendations    string `json:"recommendations"`
	ConsideredHistory  bool   `json:"considered_history,omitempty"`
}

// TravelAdvisory is the result of check_travel_advisory.
type TravelAdvisory struct {
	Country       string   `json:"country"`
	AdvisoryLevel string   `json:"advisory_level"`
	Risks         []string `json:"risks"`
	AsOfDate      string   `json:"as_of_date"`
}

// AccommodationOption is one lodging option.
type AccommodationOption struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Capacity string `json:"capacity"`
	Address  string `json:"address"`
	Notes    string `json:"notes,omitempty"`
	Contact  string `json:"contact"`
}

// AccommodationResult is the result of find_emergency_accommodation.
type AccommodationResult struct {
	Location            string                `json:"location"`
	AvailableOptions    []AccommodationOption `json:"available_options"`
	BookingInstructions string                `json:"booking_instructions"`
}

// VisaRequirements is the result of check_visa_requirements. Required is
// true for medical cases and a short description otherwise.
type VisaRequirements struct {
	Required                    any      `json:"required"`
	EmergencyProcedureAvailable bool     `json:"emergency_procedure_available"`
	DocumentationNeeded         []string `json:"documentation_needed"`
	ProcessingTime              string   `json:"processing_time"`
	Contact                     string   `json:"contact"`
}

// Toolbox holds the mock emergency tools. The clock is injectable so
// results are reproducible in tests.
type Toolbox struct {
	now func() time.Time
}

// NewToolbox returns a toolbox using now; nil means time.Now.
func NewToolbox(now func() time.Time) *Toolbox {
	if now == nil {
		now = time.Now
	}
	return &Toolbox{now: now}
}

// AssessMedicalUrgency grades symptoms by keyword.
func (b *Toolbox) AssessMedicalUrgency(symptoms, history string) MedicalAssessment {
	s := strings.ToLower(symptoms)
	level := UrgencyRoutine
	switch {
	case containsAny(s, criticalSymptoms...):
		level = UrgencyCritical
	case strings.Contains(s, "pain") || strings.Contains(s, "fever"):
		level = UrgencyUrgent
	}
	return MedicalAssessment{
		UrgencyLevel:       level,
		AssessmentTime:     b.now().Format("2006-01-02T15:04:05"),
		RequiresEvacuation: level == UrgencyCritical,
		Recommendations:    fmt.Sprintf("Based on symptoms, this appears to be a %s situation.", strings.ToLower(level)),
		ConsideredHistory:  strings.TrimSpace(history) != "",
	}
}

// CheckTravelAdvisory looks up the advisory for country.
func (b *Toolbox) CheckTravelAdvisory(country string) TravelAdvisory {
	out := TravelAdvisory{
		Country:       country,
		AdvisoryLevel: "INFORMATION NOT AVAILABLE",
		Risks:         []string{},
		AsOfDate:      b.now().Format("2006-01-02"),
	}
	if a, ok := advisories[strings.ToLower(strings.TrimSpace(country))]; ok {
		out.AdvisoryLevel = a.level
		out.Risks = append([]string{}, a.risks...)
	}
	return out
}

// FindEmergencyAccommodation lists lodging in location. Special needs add
// an accessible facility.
func (b *Toolbox) FindEmergencyAccommodation(location string, people int, specialNeeds string) AccommodationResult {
	options := []AccommodationOption{
		{
			Name:     "Emergency Shelter in " + location,
			Type:     "Shelter",
			Capacity: "Large groups",
			Address:  "Main Emergency Center, " + location,
			Contact:  "emergency@example.org",
		},
		{
			Name:     "Hotel Rapid Response in " + location,
			Type:     "Hotel",
			Capacity: fmt.Sprintf("Can accommodate %d people", people),
			Address:  "123 Safety St, " + location,
			Contact:  "reservations@hotelrapidresponse.example.com",
		},
	}
	if strings.TrimSpace(specialNeeds) != "" {
		options = append(options, AccommodationOption{
			Name:     "Accessible Haven in " + location,
			Type:     "Specialized Facility",
			Capacity: "Limited but available",
			Address:  "456 Care Avenue, " + location,
			Notes:    "Equipped for " + specialNeeds,
			Contact:  "access@haven.example.org",
		})
	}
	return AccommodationResult{
		Location:            location,
		AvailableOptions:    options,
		BookingInstructions: "Contact the preferred option directly or reply with your selection for assistance.",
	}
}

// CheckVisaRequirements returns the procedure for purpose: medical,
// evacuation or anything else (standard).
func (b *Toolbox) CheckVisaRequirements(citizenship, destination, purpose string) VisaRequirements {
	dest := titleCase(destination)
	switch strings.ToLower(strings.TrimSpace(purpose)) {
	case "medical":
		return VisaRequirements{
			Required:                    true,
			EmergencyProcedureAvailable: true,
			DocumentationNeeded: []string{
				"Passport valid for 6 months",
				"Doctor's letter stating medical necessity",
				"Proof of funds or insurance",
				"Emergency visa application form",
			},
			ProcessingTime: "24-48 hours for emergency medical cases",
			Contact:        dest + " Embassy Emergency Line: +1-555-EMERGENCY",
		}
	case "evacuation":
		return VisaRequirements{
			Required:                    "Expedited process",
			EmergencyProcedureAvailable: true,
			DocumentationNeeded: []string{
				"Any available identification",
				"Evacuation order if available",
				"Emergency contact in destination country",
			},
			ProcessingTime: "Immediate to 24 hours for evacuation cases",
			Contact:        dest + " Emergency Management Office: +1-555-EVAC-NOW",
		}
	default:
		return VisaRequirements{
			Required:                    "Standard process applies",
			EmergencyProcedureAvailable: false,
			DocumentationNeeded: []string{
				"Passport valid for 6 months",
				"Visa application",
				"Proof of accommodation and return travel",
				"Proof of funds",
			},
			ProcessingTime: "5-10 business days",
			Contact:        dest + " Embassy: consular@" + strings.ToLower(destination) + ".embassy.example.org",
		}
	}
}

// DomainTools wraps the toolbox as domain tools, in declaration order.
func (b *Toolbox) DomainTools() []*core.DomainTool {
	return []*core.DomainTool{
		core.MustDomainTool(ToolAssessMedicalUrgency,
			"Assess the urgency level of a medical situation based on symptoms and history.",
			objectSchema([]string{"symptoms"},
				prop("symptoms", "string", "Description of current symptoms"),
				prop("medical_history", "string", "Optional medical history information")),
			func(_ context.Context, args map[string]any) (any, error) {
				return b.AssessMedicalUrgency(stringArg(args, "symptoms"), stringArg(args, "medical_history")), nil
			}),
		core.MustDomainTool(ToolCheckTravelAdvisory,
			"Check current travel advisories for a specific country.",
			objectSchema([]string{"country"},
				prop("country", "string", "The country to check advisories for")),
			func(_ context.Context, args map[string]any) (any, error) {
				return b.CheckTravelAdvisory(stringArg(args, "country")), nil
			}),
		core.MustDomainTool(ToolFindEmergencyAccommodation,
			"Find emergency accommodation options in the specified location.",
			objectSchema([]string{"location", "num_people"},
				prop("location", "string", "City or region where accommodation is needed"),
				prop("num_people", "integer", "Number of people needing accommodation"),
				prop("special_needs", "string", "Any special requirements or accessibility needs")),
			func(_ context.Context, args map[string]any) (any, error) {
				people, err := intArg(args, "num_people")
				if err != nil {
					return nil, err
				}
				return b.FindEmergencyAccommodation(stringArg(args, "location"), people, stringArg(args, "special_needs")), nil
			}),
		core.MustDomainTool(ToolCheckVisaRequirements,
			"Check emergency visa requirements and procedures.",
			objectSchema([]string{"citizenship", "destination", "purpose"},
				prop("citizenship", "string", "Country of citizenship"),
				prop("destination", "string", "Destination country"),
				prop("purpose", "string", "Purpose of travel (medical, evacuation, etc.)")),
			func(_ context.Context, args map[string]any) (any, error) {
				return b.CheckVisaRequirements(stringArg(args, "citizenship"),
					stringArg(args, "destination"), stringArg(args, "purpose")), nil
			}),
	}
}

type property struct {
	name, typ, description string
}

func prop(name, typ, description string) property {
	return property{name: name, typ: typ, description: description}
}

func objectSchema(required []string, props ...property) map[string]any {
	properties := make(map[string]any, len(props))
	for _, p := range props {
		properties[p.name] = map[string]any{"type": p.typ, "description": p.description}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s: expected an integer, got %q", key, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s: expected an integer, got %T", key, v)
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// titleCase capitalizes every word, and every part of a word after an
// apostrophe: "côte d'ivoire" becomes "Côte D'Ivoire".
func titleCase(s string) string {
	caser := cases.Title(language.Und)
	words := strings.Fields(s)
	for i, w := range words {
		parts := strings.Split(w, "'")
		for j, p := range parts {
			parts[j] = caser.String(p)
		}
		words[i] = strings.Join(parts, "'")
	}
	return strings.Join(words, " ")
}
