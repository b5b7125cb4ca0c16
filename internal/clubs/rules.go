// Package clubs provides the club rule set and the run classifier.
//
// A rule set is an ordered list of club rules. Order is significant: when a run
// could match more than one club, the first rule in declaration order wins, so
// the configuration file decides the priority, not map iteration order.
package clubs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock instant within a day, in seconds since midnight.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string into a TimeOfDay
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60), nil
}

// String formats the time of day as "HH:MM"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/3600, int(t)%3600/60)
}

// ClubRule describes one recurring club session
type ClubRule struct {
	Name        string
	Days        []time.Weekday
	Start       TimeOfDay // window start, inclusive
	End         TimeOfDay // window end, inclusive
	City        string    // optional, empty means any city
	Country     string    // optional, empty means any country
	Description string
}

// RuleSet is an ordered sequence of club rules. Earlier rules take priority.
type RuleSet []ClubRule

// Location is the reported location of an activity. Empty fields mean the
// source did not report that component.
type Location struct {
	City    string
	Country string
}

// ruleWire is the JSON representation of a rule in the configuration file
type ruleWire struct {
	Name       string   `json:"name"`
	Days       []string `json:"days"`
	TimeWindow struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"time_window"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Description string `json:"description,omitempty"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// LoadRules reads an ordered rule set from a JSON file. The file holds a JSON
// array; array order becomes rule priority.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read club rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses an ordered rule set from JSON
func ParseRules(data []byte) (RuleSet, error) {
	var wire []ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse club rules: %w", err)
	}

	rules := make(RuleSet, 0, len(wire))
	for i, w := range wire {
		if w.Name == "" {
			return nil, fmt.Errorf("club rule %d: name is required", i)
		}
		if len(w.Days) == 0 {
			return nil, fmt.Errorf("club rule %q: at least one day is required", w.Name)
		}

		rule := ClubRule{
			Name:        w.Name,
			City:        w.City,
			Country:     w.Country,
			Description: w.Description,
		}

		for _, day := range w.Days {
			wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(day))]
			if !ok {
				return nil, fmt.Errorf("club rule %q: unknown weekday %q", w.Name, day)
			}
			rule.Days = append(rule.Days, wd)
		}

		start, err := ParseTimeOfDay(w.TimeWindow.Start)
		if err != nil {
			return nil, fmt.Errorf("club rule %q: %w", w.Name, err)
		}
		end, err := ParseTimeOfDay(w.TimeWindow.End)
		if err != nil {
			return nil, fmt.Errorf("club rule %q: %w", w.Name, err)
		}
		if end < start {
			return nil, fmt.Errorf("club rule %q: window end %s before start %s", w.Name, end, start)
		}
		rule.Start = start
		rule.End = end

		rules = append(rules, rule)
	}

	return rules, nil
}

// Names returns the club names in declaration order
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// NameToSlug converts a club name to its URL slug form
func NameToSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// SlugToName converts a URL slug back into a club name
func SlugToName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
