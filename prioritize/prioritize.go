// Package prioritize implements the scoring rules behind the prioritization
// boards: RICE, GUT and the Eisenhower matrix. Boards are single-user and
// in-memory; nothing here touches the shared store.
package prioritize

import "sort"

// RICEItem is one scored entry on a RICE board. Confidence is a percentage.
type RICEItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Reach      float64 `json:"reach"`
	Impact     float64 `json:"impact"`
	Confidence float64 `json:"confidence"`
	Effort     float64 `json:"effort"`
	Score      float64 `json:"score"`
}

// RICEScore computes (reach * impact * confidence/100) / effort. Zero effort
// yields a zero score rather than a division blowup.
func RICEScore(reach, impact, confidence, effort float64) float64 {
	if effort == 0 {
		return 0
	}
	return (reach * impact * confidence / 100) / effort
}

// ScoreRICE recomputes every item's score and sorts descending by score,
// id as tiebreak for a stable display order.
func ScoreRICE(items []RICEItem) []RICEItem {
	for i := range items {
		items[i].Score = RICEScore(items[i].Reach, items[i].Impact, items[i].Confidence, items[i].Effort)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// GUTItem is one scored entry on a GUT board. Gravity, urgency and tendency
// are conventionally rated 1-5.
type GUTItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Gravity  int    `json:"gravity"`
	Urgency  int    `json:"urgency"`
	Tendency int    `json:"tendency"`
	Score    int    `json:"score"`
}

// GUTScore computes gravity * urgency * tendency.
func GUTScore(gravity, urgency, tendency int) int {
	return gravity * urgency * tendency
}

// ScoreGUT recomputes every item's score and sorts descending by score,
// id as tiebreak.
func ScoreGUT(items []GUTItem) []GUTItem {
	for i := range items {
		items[i].Score = GUTScore(items[i].Gravity, items[i].Urgency, items[i].Tendency)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// EisenhowerItem is one entry on an Eisenhower matrix.
type EisenhowerItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Urgent    bool   `json:"urgent"`
	Important bool   `json:"important"`
	Quadrant  int    `json:"quadrant"`
}

// EisenhowerQuadrant maps the two flags to quadrants 1-4:
// do first, schedule, delegate, eliminate.
func EisenhowerQuadrant(urgent, important bool) int {
	switch {
	case urgent && important:
		return 1
	case !urgent && important:
		return 2
	case urgent && !important:
		return 3
	default:
		return 4
	}
}

// Quadrants assigns every item its quadrant and groups them 1-4.
func Quadrants(items []EisenhowerItem) map[int][]EisenhowerItem {
	out := map[int][]EisenhowerItem{1: {}, 2: {}, 3: {}, 4: {}}
	for _, it := range items {
		it.Quadrant = EisenhowerQuadrant(it.Urgent, it.Important)
		out[it.Quadrant] = append(out[it.Quadrant], it)
	}
	return out
}
