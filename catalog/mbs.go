package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// MBSItem is a single item as published in the MBS schedule JSON download.
// Only the fields used to build catalog entries are kept.
type MBSItem struct {
	ItemNum      string  `json:"ItemNum"`
	Description  string  `json:"Description"`
	ScheduleFee  float64 `json:"ScheduleFee"`
	DerivedFee   float64 `json:"DerivedFee"`
	Category     string  `json:"Category"`
	Group        string  `json:"Group"`
	SubGroup     string  `json:"SubGroup"`
	ProviderType string  `json:"ProviderType"`
	ItemEndDate  string  `json:"ItemEndDate"`
}

var (
	minutesPattern = regexp.MustCompile(`(?i)(?:at least|not less than|more than)\s+(\d+)\s+min`)
	videoPattern   = regexp.MustCompile(`(?i)\b(video|telehealth|telephone|phone)\b`)
	afterHours     = regexp.MustCompile(`(?i)\b(after[- ]hours|unsociable hours)\b`)
)

const titleLimit = 120

// FromMBSItems converts schedule items into catalog entries. Time thresholds and
// the telehealth/after_hours flags are read from the item description; mutual
// exclusions are not part of the schedule and start empty.
func FromMBSItems(items []MBSItem) []Entry {
	out := make([]Entry, 0, len(items))
	for _, item := range items {
		code := strings.TrimSpace(item.ItemNum)
		if code == "" {
			continue
		}

		fee := item.ScheduleFee
		if fee == 0 {
			fee = item.DerivedFee
		}

		e := Entry{
			Code:                  code,
			Title:                 titleFromDescription(item.Description),
			Fee:                   fee,
			Flags:                 Flags{},
			MutuallyExclusiveWith: []string{},
		}

		if m := minutesPattern.FindStringSubmatch(item.Description); m != nil {
			if minutes, err := strconv.ParseFloat(m[1], 64); err == nil && minutes > 0 {
				e.TimeThreshold = &minutes
			}
		}
		e.Flags[FlagTelehealth] = videoPattern.MatchString(item.Description)
		if afterHours.MatchString(item.Description) {
			e.Flags[FlagAfterHours] = true
		}

		out = append(out, e)
	}
	return out
}

func titleFromDescription(desc string) string {
	desc = strings.Join(strings.Fields(desc), " ")
	if i := strings.Index(desc, ". "); i > 0 && i < titleLimit {
		return desc[:i]
	}
	if len(desc) > titleLimit {
		return strings.TrimSpace(desc[:titleLimit]) + "..."
	}
	return desc
}
