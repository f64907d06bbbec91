package emergency

// Scenario is a scripted emergency: an opening message and a follow-up
// sent on the same session.
type Scenario struct {
	ID          string
	Name        string
	Description string
	Initial     string
	Followup    string
}

var scenarios = []Scenario{
	{
		ID:          "1",
		Name:        "Medical Emergency",
		Description: "A colleague experiencing chest pain in Japan",
		Initial:     "I need urgent help. My colleague is experiencing chest pain while traveling in Japan for business. What should we do?",
		Followup:    "The pain is on the left side of his chest, and he's also feeling dizzy. He has a history of high blood pressure.",
	},
	{
		ID:          "2",
		Name:        "Security Threat",
		Description: "A traveler in a region with increasing civil unrest",
		Initial:     "I'm currently in Cairo, Egypt and there are reports of protests growing in the city center. I'm concerned about my safety at my hotel which is near Tahrir Square.",
		Followup:    "The protests are getting closer to my hotel. I can hear loud noises and see police. I'm traveling alone and don't speak Arabic.",
	},
	{
		ID:          "3",
		Name:        "Documentation Emergency",
		Description: "Lost passport and urgent border crossing needed",
		Initial:     "I've lost my passport while traveling in Italy and need to get to Germany for an urgent family emergency within 24 hours. What can I do?",
		Followup:    "I'm a US citizen and I have a photocopy of my passport and my driver's license with me. The family emergency is my father being hospitalized.",
	},
	{
		ID:          "4",
		Name:        "Natural Disaster & Accommodation",
		Description: "Travelers needing evacuation and shelter after earthquake",
		Initial:     "We're a family of 4 in Mexico City and there was just a major earthquake. Our hotel has been evacuated and declared unsafe. We need somewhere to stay and information about getting back to the United States.",
		Followup:    "We have two children ages 5 and 7, and my mother-in-law uses a wheelchair. We still have our passports but very limited cash. We're not sure if our return flights in 3 days will still operate.",
	},
	{
		ID:          "5",
		Name:        "Communication Crisis",
		Description: "Establishing contact during infrastructure disruption",
		Initial:     "I'm trying to reach my team of 5 engineers who were in Thailand during the major flooding. Cell networks seem to be down and I haven't heard from them in 24 hours.",
		Followup:    "Their last known location was Bangkok, in the eastern part of the city. They were staying at different hotels and working on a project at a local manufacturing facility.",
	},
	{
		ID:          "6",
		Name:        "Complex Multi-Tool Scenario",
		Description: "Scenario designed to trigger most or all specialized agents",
		Initial:     "Our corporate executive team of 6 people is stranded in Ukraine due to sudden border closures and flight cancellations. One executive has a heart condition, we've lost contact with two team members, our hotel has received a security threat, and most of the team's travel documents were left in a vehicle that's now inaccessible. We need comprehensive emergency assistance.",
		Followup:    "The executive with the heart condition is now reporting chest pain and shortness of breath. We need medical help, secure transportation to the Polish border, emergency documentation assistance, and a way to establish reliable communication with our two missing team members.",
	},
}

// Scenarios returns the scenarios in menu order.
func Scenarios() []Scenario {
	return append([]Scenario(nil), scenarios...)
}

// ScenarioByID finds a scenario by its menu number.
func ScenarioByID(id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
