// Package activity implements the Activity Dispatcher (spec.md §4.11):
// classification of a promotion into a handler kind, and the typed
// handlers for each kind.
package activity

import "strings"

// Kind is one classified activity type.
type Kind string

const (
	KindPoll         Kind = "poll"
	KindABC          Kind = "abc"
	KindThisOrThat   Kind = "thisOrThat"
	KindQuiz         Kind = "quiz"
	KindSearchOnBing Kind = "searchOnBing"
	KindURLReward    Kind = "urlReward"
	KindFreeRewards  Kind = "freeRewards"
	KindDailyCheckIn Kind = "dailyCheckIn"
	KindReadToEarn   Kind = "readToEarn"
	KindUnsupported  Kind = "unsupported"
)

// Promotion is the subset of a dashboard promotion record the
// classifier and handlers need.
type Promotion struct {
	ID               string
	Name             string
	PromotionType    string
	PointProgress    int
	PointProgressMax int
	URL              string
}

// Classify implements the first-match-wins table in spec.md §4.11.
func Classify(p Promotion) Kind {
	switch {
	case p.PromotionType == "quiz" && p.PointProgressMax == 10 && strings.Contains(p.URL, "pollscenarioid"):
		return KindPoll
	case p.PromotionType == "quiz" && p.PointProgressMax == 10:
		return KindABC
	case p.PromotionType == "quiz" && p.PointProgressMax == 50:
		return KindThisOrThat
	case p.PromotionType == "quiz":
		return KindQuiz
	case p.PromotionType == "urlreward" && strings.Contains(strings.ToLower(p.Name), "exploreonbing"):
		return KindSearchOnBing
	case p.PromotionType == "urlreward":
		return KindURLReward
	default:
		return KindUnsupported
	}
}
