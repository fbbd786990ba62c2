package view

// Selection tracks the one server a user has focused on the dashboard.
// The zero value has nothing selected.
type Selection struct {
	hostname string
}

// Toggle selects hostname, or clears the selection if it is already selected.
func (s *Selection) Toggle(hostname string) {
	if s.hostname == hostname {
		s.hostname = ""
		return
	}
	s.hostname = hostname
}

func (s *Selection) Clear() {
	s.hostname = ""
}

func (s Selection) Hostname() string {
	return s.hostname
}

func (s Selection) Active() bool {
	return s.hostname != ""
}

// Apply marks the selected card and highlights its panel. A selection that
// no longer matches any server is dropped.
func (s *Selection) Apply(cards []SummaryCard, panels []ServerPanel) {
	found := false
	for i := range cards {
		cards[i].Selected = cards[i].Hostname == s.hostname
		found = found || cards[i].Selected
	}
	for i := range panels {
		panels[i].Highlighted = panels[i].Hostname == s.hostname
	}
	if !found {
		s.hostname = ""
	}
}
