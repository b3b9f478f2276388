// Package outcome defines the visit outcome vocabulary and the color rules
// derived from it.
package outcome

// Tag is a fixed-vocabulary label describing the result of one visit.
// Tags outside the vocabulary are stored as given.
type Tag string

const (
	NoAnswer             Tag = "No Answer"
	Busy                 Tag = "Busy"
	SharedGospel         Tag = "Shared Gospel"
	InvitedToChurch      Tag = "Invited to Church"
	AttendsAnotherChurch Tag = "Attends Another Church"
	Believer             Tag = "Believer"
	RequestedNoContact   Tag = "Requested No Contact"
	NoSoliciting         Tag = "No Soliciting"
	FollowUp             Tag = "Follow Up"
	LimitedEnglish       Tag = "Limited English"
)

// Tags is the known vocabulary in form order.
var Tags = []Tag{
	NoAnswer,
	Busy,
	SharedGospel,
	InvitedToChurch,
	AttendsAnotherChurch,
	Believer,
	RequestedNoContact,
	NoSoliciting,
	FollowUp,
	LimitedEnglish,
}

// IsKnown reports whether t is part of the vocabulary.
func (t Tag) IsKnown() bool {
	for _, k := range Tags {
		if t == k {
			return true
		}
	}
	return false
}

// Color is a pin color category.
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Green  Color = "green"
	Grey   Color = "grey"
	Blue   Color = "blue"
)

// Colors lists every category in legend order.
var Colors = []Color{Red, Orange, Yellow, Green, Grey, Blue}

// ParseColor returns the category named s.
func ParseColor(s string) (Color, bool) {
	for _, c := range Colors {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
