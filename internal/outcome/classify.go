package outcome

// rule maps any of its tags to a color. Rules are checked in order.
type rule struct {
	color Color
	tags  []Tag
}

var rules = []rule{
	{Red, []Tag{RequestedNoContact}},
	{Orange, []Tag{LimitedEnglish}},
	{Grey, []Tag{NoAnswer}},
	{Yellow, []Tag{Busy, AttendsAnotherChurch, Believer}},
	{Green, []Tag{SharedGospel, InvitedToChurch}},
}

// Classify returns the color category for a set of outcome tags.
// The first matching rule wins; unmatched sets, including the empty set, are blue.
func Classify(tags []Tag) Color {
	present := make(map[Tag]struct{}, len(tags))
	for _, t := range tags {
		present[t] = struct{}{}
	}

	for _, r := range rules {
		for _, t := range r.tags {
			if _, ok := present[t]; ok {
				return r.color
			}
		}
	}
	return Blue
}

// Style is the presentation of a color category.
type Style struct {
	Color      Color  `json:"color"`
	Pin        string `json:"pin"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

var styles = map[Color]Style{
	Red:    {Color: Red, Pin: "#FF4040", Background: "#FFE5E5", Text: "#000000"},
	Orange: {Color: Orange, Pin: "#FFA500", Background: "#FFE9CC", Text: "#000000"},
	Yellow: {Color: Yellow, Pin: "#FFD700", Background: "#FFFAE5", Text: "#000000"},
	Green:  {Color: Green, Pin: "#40FF40", Background: "#E5FFE5", Text: "#000000"},
	Grey:   {Color: Grey, Pin: "#808080", Background: "#F2F2F2", Text: "#000000"},
	Blue:   {Color: Blue, Pin: "#4040FF", Background: "#E5E5FF", Text: "#000000"},
}

// StyleOf returns the style for c. Unknown categories get the blue style.
func StyleOf(c Color) Style {
	if s, ok := styles[c]; ok {
		return s
	}
	return styles[Blue]
}

// Styles returns every style in legend order.
func Styles() []Style {
	out := make([]Style, 0, len(Colors))
	for _, c := range Colors {
		out = append(out, styles[c])
	}
	return out
}
