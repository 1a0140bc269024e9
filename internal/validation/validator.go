package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/maheshrc27/publish-engine/internal/capability"
	"github.com/maheshrc27/publish-engine/internal/models"
)

const (
	CodeUnsupportedPlatform  = "unsupported_platform"
	CodeUnsupportedFormat    = "unsupported_format"
	CodeEmptyPost            = "empty_post"
	CodeContentTooLong       = "content_too_long"
	CodeTooFewMedia          = "too_few_media"
	CodeTooManyMedia         = "too_many_media"
	CodeTooManyHashtags      = "too_many_hashtags"
	CodeUnderHashtagged      = "under_hashtagged"
	CodeSingleVideoRequired  = "single_video_required"
	CodeSingleMediaRequired  = "single_media_required"
	CodeVideoNotAlone        = "video_not_alone"
	CodeVideoRequired        = "video_required"
	CodeMarkupNotAllowed     = "markup_not_allowed"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeAspectRatio          = "aspect_ratio_out_of_range"
	CodeDuration             = "duration_out_of_range"
	CodeUnknownDimensions    = "unknown_dimensions"
	CodeUnknownDuration      = "unknown_duration"
)

var (
	hashtagPattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_&])#([\p{L}\p{N}_]+)`)
	markupPattern  = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9-]*(\s[^<>]*)?/?>`)
)

type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Valid    bool        `json:"valid"`
	Errors   []Violation `json:"errors"`
	Warnings []Violation `json:"warnings"`
}

type Report map[models.Platform]Result

// Passing lists the platforms of the report that validated, in the order given.
func (r Report) Passing(order []models.Platform) []models.Platform {
	var out []models.Platform
	for _, p := range order {
		if res, ok := r[p]; ok && res.Valid {
			out = append(out, p)
		}
	}
	return out
}

type Draft struct {
	Content string
	Media   []models.Media
	Format  models.Format
}

type Validator struct {
	table capability.Table
}

func New(table capability.Table) *Validator {
	return &Validator{table: table}
}

// CountHashtags counts #tokens in content.
func CountHashtags(content string) int {
	return len(hashtagPattern.FindAllStringIndex(content, -1))
}

func (v *Validator) Validate(d Draft, platforms []models.Platform) Report {
	report := make(Report, len(platforms))
	for _, p := range platforms {
		if _, seen := report[p]; seen {
			continue
		}
		report[p] = v.validateOne(d, p)
	}
	return report
}

func (v *Validator) validateOne(d Draft, p models.Platform) Result {
	var res result

	c, ok := v.table.Lookup(p)
	if !ok {
		res.fail(CodeUnsupportedPlatform, "platform %q is not supported", p)
		return res.done()
	}

	format := d.Format
	if format == "" {
		format = models.FormatPost
	}
	rule, ok := c.Supports(format)
	if !ok {
		res.fail(CodeUnsupportedFormat, "%s does not support %s content", p, format)
	}

	length := utf8.RuneCountInString(d.Content)
	if length == 0 && len(d.Media) == 0 {
		res.fail(CodeEmptyPost, "post has neither text nor media")
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		res.fail(CodeContentTooLong, "content is %d characters, %s allows %d", length, p, c.MaxLength)
	}

	if len(d.Media) < c.MinMedia {
		res.fail(CodeTooFewMedia, "%s requires at least %d media item(s)", p, c.MinMedia)
	}
	if len(d.Media) > c.MaxMedia {
		res.fail(CodeTooManyMedia, "%s allows at most %d media item(s), got %d", p, c.MaxMedia, len(d.Media))
	}

	hashtags := CountHashtags(d.Content)
	if c.MaxHashtags > 0 && hashtags > c.MaxHashtags {
		res.fail(CodeTooManyHashtags, "%d hashtags exceed the %s limit of %d", hashtags, p, c.MaxHashtags)
	}
	if hashtags < c.SuggestedHashtags {
		res.warn(CodeUnderHashtagged, "%s posts usually carry at least %d hashtag(s)", p, c.SuggestedHashtags)
	}

	if c.NoMarkup && markupPattern.MatchString(d.Content) {
		res.fail(CodeMarkupNotAllowed, "%s does not accept markup tags", p)
	}

	images, videos := 0, 0
	for _, m := range d.Media {
		switch m.Type {
		case models.MediaTypeImage:
			images++
		case models.MediaTypeVideo:
			videos++
		default:
			res.fail(CodeUnsupportedMediaType, "media %q has unsupported type %q", m.URL, m.Type)
		}
	}
	if c.SingleVideo && (videos != 1 || images != 0) {
		res.fail(CodeSingleVideoRequired, "%s requires exactly one video and no images", p)
	}
	if c.VideoAlone && videos > 0 && len(d.Media) > 1 {
		res.fail(CodeVideoNotAlone, "%s accepts a video only as the single media item", p)
	}
	if rule.SingleMedia && len(d.Media) != 1 {
		res.fail(CodeSingleMediaRequired, "%s %s requires exactly one media item", p, format)
	}
	if rule.VideoOnly && images > 0 {
		res.fail(CodeVideoRequired, "%s %s accepts video only", p, format)
	}

	for _, m := range d.Media {
		v.checkMedia(&res, c, rule, format, m)
	}

	return res.done()
}

func (v *Validator) checkMedia(res *result, c capability.Capability, rule capability.FormatRule, format models.Format, m models.Media) {
	if rule.AspectRatio != (capability.Range{}) {
		ratio := m.AspectRatio()
		switch {
		case ratio == 0:
			res.warn(CodeUnknownDimensions, "dimensions of %q are unknown, aspect ratio not checked", m.URL)
		case !rule.AspectRatio.Contains(ratio):
			res.fail(CodeAspectRatio, "aspect ratio %.2f of %q is outside %.2f-%.2f for %s %s",
				ratio, m.URL, rule.AspectRatio.Min, rule.AspectRatio.Max, c.Platform, format)
		}
	}

	if m.Type != models.MediaTypeVideo {
		return
	}
	bounds := c.VideoDuration
	if rule.DurationSec != (capability.Range{}) {
		bounds = rule.DurationSec
	}
	if bounds == (capability.Range{}) {
		return
	}
	if m.DurationSec <= 0 {
		res.warn(CodeUnknownDuration, "duration of %q is unknown, not checked", m.URL)
		return
	}
	if !bounds.Contains(m.DurationSec) {
		res.fail(CodeDuration, "video %q is %.1fs, %s %s allows %.1f-%.1fs",
			m.URL, m.DurationSec, c.Platform, format, bounds.Min, bounds.Max)
	}
}

type result struct {
	errors   []Violation
	warnings []Violation
}

func (r *result) fail(code, format string, args ...any) {
	r.errors = append(r.errors, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *result) warn(code, format string, args ...any) {
	r.warnings = append(r.warnings, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *result) done() Result {
	return Result{Valid: len(r.errors) == 0, Errors: r.errors, Warnings: r.warnings}
}
