package clubs

import (
	"strings"
	"time"
)

// Classify maps a run's local start time and reported location to at most one
// club, evaluating rules in declaration order and returning the first match.
//
// A rule matches when all of the following hold:
//   - the weekday of the local timestamp is in the rule's day set
//   - the rule's city, if set, equals the activity's city case-insensitively;
//     an activity with no reported city satisfies any city constraint
//   - same for country
//   - the local time of day is within [Start, End], inclusive on both ends
//
// Classify is pure and total: no I/O, no error cases. A run matching no rule
// returns ("", false).
func Classify(local time.Time, loc Location, rules RuleSet) (string, bool) {
	tod := TimeOfDay(local.Hour()*3600 + local.Minute()*60 + local.Second())
	weekday := local.Weekday()

	for _, rule := range rules {
		if !containsDay(rule.Days, weekday) {
			continue
		}
		if !locationMatches(rule.City, loc.City) {
			continue
		}
		if !locationMatches(rule.Country, loc.Country) {
			continue
		}
		if tod < rule.Start || tod > rule.End {
			continue
		}
		return rule.Name, true
	}

	return "", false
}

func containsDay(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// locationMatches applies the permissive-on-missing-data policy: a constraint
// is satisfied when the rule does not set it or the activity does not report it.
func locationMatches(required, reported string) bool {
	if required == "" || reported == "" {
		return true
	}
	return strings.EqualFold(required, reported)
}
