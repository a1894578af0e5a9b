package model

import "sort"

// Tag describes one entry of the closed question tag vocabulary.
type Tag struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	PromptTips  string `json:"prompt_tips"`
	Color       string `json:"color"`
}

// TagDefinitions maps tag ids to their metadata. Read-only.
var TagDefinitions = map[string]Tag{
	"calculation": {
		ID:          "calculation",
		Label:       "Calculation",
		Icon:        "🔢",
		Description: "Needs numeric calculation or arithmetic",
		PromptTips:  "Ask the model to show each calculation step so the final number is computed, not guessed.",
		Color:       "#3B82F6",
	},
	"character_counting": {
		ID:          "character_counting",
		Label:       "Character counting",
		Icon:        "📊",
		Description: "Counts string length or occurrences of characters",
		PromptTips:  "Tell the model to go through the text one character at a time and re-check the count.",
		Color:       "#10B981",
	},
	"text_analysis": {
		ID:          "text_analysis",
		Label:       "Text analysis",
		Icon:        "📝",
		Description: "Analyses the structure or content of a passage",
		PromptTips:  "Ask for a careful reading and name the aspects the analysis should cover.",
		Color:       "#8B5CF6",
	},
	"text_problem": {
		ID:          "text_problem",
		Label:       "Word problem",
		Icon:        "📖",
		Description: "Extracts facts from prose and solves from them",
		PromptTips:  "Have the model restate the conditions before solving.",
		Color:       "#F59E0B",
	},
	"pattern_recognition": {
		ID:          "pattern_recognition",
		Label:       "Pattern recognition",
		Icon:        "🔍",
		Description: "Finds a rule or regularity",
		PromptTips:  "Encourage observation and hypothesis testing across several examples.",
		Color:       "#EC4899",
	},
	"logic_puzzle": {
		ID:          "logic_puzzle",
		Label:       "Logic puzzle",
		Icon:        "🧩",
		Description: "Needs step-by-step deduction",
		PromptTips:  "Ask the model to reason in explicit steps and check for contradictions.",
		Color:       "#EF4444",
	},
	"general_knowledge": {
		ID:          "general_knowledge",
		Label:       "General knowledge",
		Icon:        "🌍",
		Description: "Asks about common facts",
		PromptTips:  "Ask the model to draw on what it knows and cite its reasoning.",
		Color:       "#06B6D4",
	},
	"estimation": {
		ID:          "estimation",
		Label:       "Estimation",
		Icon:        "📐",
		Description: "Estimates an approximate value",
		PromptTips:  "Make the assumptions explicit and estimate in stages.",
		Color:       "#84CC16",
	},
}

// TagByID returns the tag metadata for id.
func TagByID(id string) (Tag, bool) {
	tag, ok := TagDefinitions[id]
	return tag, ok
}

// AllTags returns every tag sorted by id.
func AllTags() []Tag {
	tags := make([]Tag, 0, len(TagDefinitions))
	for _, tag := range TagDefinitions {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	return tags
}

// PromptTips returns the tips for the known tags in ids, in input order.
// Unknown ids are skipped.
func PromptTips(ids []string) []string {
	var tips []string
	for _, id := range ids {
		if tag, ok := TagDefinitions[id]; ok {
			tips = append(tips, tag.PromptTips)
		}
	}
	return tips
}
