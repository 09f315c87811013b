package classify

import "strings"

const (
	CategoryPothole     = "pothole"
	CategorySanitation  = "sanitation"
	CategoryWater       = "water"
	CategoryElectricity = "electricity"
	CategoryParks       = "parks"
	CategoryTraffic     = "traffic"
	CategoryOther       = "other"
)

// targetKeywords marks a complaint as eligible for image verification.
var targetKeywords = []string{
	"pothole",
	"road",
	"street",
	"highway",
	"pavement",
	"asphalt",
	"crack",
	"damage",
}

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules is evaluated in order; the first matching rule wins.
var categoryRules = []categoryRule{
	{CategoryPothole, []string{"pothole", "road", "street", "highway"}},
	{CategorySanitation, []string{"garbage", "sanitation", "waste", "trash"}},
	{CategoryWater, []string{"water", "leak", "pipe"}},
	{CategoryElectricity, []string{"electric", "light", "power"}},
	{CategoryParks, []string{"park", "playground", "recreation"}},
	{CategoryTraffic, []string{"traffic", "signal", "intersection"}},
}

type Result struct {
	Category string
	IsTarget bool
}

// Classify derives a coarse category and the verification eligibility
// signal from free-text title and description. Pure and deterministic.
func Classify(title string, description string) Result {
	text := strings.ToLower(title + " " + description)

	res := Result{Category: CategoryOther}
	for _, kw := range targetKeywords {
		if strings.Contains(text, kw) {
			res.IsTarget = true
			break
		}
	}
	for _, rule := range categoryRules {
		if containsAny(text, rule.keywords) {
			res.Category = rule.category
			break
		}
	}
	return res
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
