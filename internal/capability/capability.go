package capability

import "github.com/maheshrc27/publish-engine/internal/models"

// Range is an inclusive bound. A zero Max means unbounded.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	if v < r.Min {
		return false
	}
	return r.Max == 0 || v <= r.Max
}

// FormatRule constrains media for one content sub-type.
type FormatRule struct {
	SingleMedia bool
	VideoOnly   bool
	AspectRatio Range
	DurationSec Range
}

type Capability struct {
	Platform models.Platform

	// MaxLength is counted in runes. Zero means no limit.
	MaxLength int
	MinMedia  int
	MaxMedia  int

	// MaxHashtags of zero means no limit.
	MaxHashtags       int
	SuggestedHashtags int

	// SingleVideo platforms accept exactly one video and no images.
	SingleVideo bool
	// VideoAlone platforms take several images per post but a video only on
	// its own.
	VideoAlone bool
	// NoMarkup platforms reject anything that looks like an HTML tag.
	NoMarkup bool

	VideoDuration Range
	Formats       map[models.Format]FormatRule
}

func (c Capability) Supports(f models.Format) (FormatRule, bool) {
	rule, ok := c.Formats[f]
	return rule, ok
}

type Table map[models.Platform]Capability

func (t Table) Lookup(p models.Platform) (Capability, bool) {
	c, ok := t[p]
	return c, ok
}

var vertical = Range{Min: 0.5, Max: 0.6}

// Default is the table the service runs with.
var Default = Table{
	models.PlatformInstagram: {
		Platform:          models.PlatformInstagram,
		MaxLength:         2200,
		MinMedia:          1,
		MaxMedia:          10,
		MaxHashtags:       30,
		SuggestedHashtags: 3,
		VideoDuration:     Range{Min: 3, Max: 900},
		Formats: map[models.Format]FormatRule{
			models.FormatPost:  {AspectRatio: Range{Min: 0.8, Max: 1.91}},
			models.FormatReel:  {SingleMedia: true, VideoOnly: true, AspectRatio: vertical, DurationSec: Range{Min: 3, Max: 90}},
			models.FormatStory: {SingleMedia: true, AspectRatio: vertical, DurationSec: Range{Max: 60}},
		},
	},
	models.PlatformFacebook: {
		Platform:          models.PlatformFacebook,
		MaxLength:         63206,
		MaxMedia:          10,
		MaxHashtags:       30,
		SuggestedHashtags: 1,
		VideoAlone:        true,
		VideoDuration:     Range{Min: 1, Max: 14400},
		Formats: map[models.Format]FormatRule{
			models.FormatPost: {},
			models.FormatReel: {SingleMedia: true, VideoOnly: true, AspectRatio: vertical, DurationSec: Range{Min: 3, Max: 90}},
		},
	},
	models.PlatformTiktok: {
		Platform:          models.PlatformTiktok,
		MaxLength:         2200,
		MinMedia:          1,
		MaxMedia:          1,
		MaxHashtags:       30,
		SuggestedHashtags: 3,
		SingleVideo:       true,
		VideoDuration:     Range{Min: 3, Max: 600},
		Formats: map[models.Format]FormatRule{
			models.FormatPost:  {},
			models.FormatShort: {AspectRatio: vertical, DurationSec: Range{Min: 3, Max: 180}},
		},
	},
	models.PlatformYoutube: {
		Platform:      models.PlatformYoutube,
		MaxLength:     5000,
		MinMedia:      1,
		MaxMedia:      1,
		MaxHashtags:   15,
		SingleVideo:   true,
		VideoDuration: Range{Min: 1, Max: 43200},
		Formats: map[models.Format]FormatRule{
			models.FormatPost:  {},
			models.FormatShort: {AspectRatio: vertical, DurationSec: Range{Max: 60}},
		},
	},
	models.PlatformLinkedin: {
		Platform:          models.PlatformLinkedin,
		MaxLength:         3000,
		MaxMedia:          9,
		MaxHashtags:       30,
		SuggestedHashtags: 1,
		NoMarkup:          true,
		VideoAlone:        true,
		VideoDuration:     Range{Min: 3, Max: 1800},
		Formats: map[models.Format]FormatRule{
			models.FormatPost: {},
		},
	},
	models.PlatformTwitter: {
		Platform:      models.PlatformTwitter,
		MaxLength:     280,
		MaxMedia:      4,
		VideoAlone:    true,
		VideoDuration: Range{Min: 0.5, Max: 140},
		Formats: map[models.Format]FormatRule{
			models.FormatPost: {},
		},
	},
}
