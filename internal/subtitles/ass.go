package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"shortforge/internal/config"
	"shortforge/internal/fileutil"
	"shortforge/internal/services"
	"shortforge/internal/stage"
	"shortforge/internal/workspace"
)

// Segment is one timed span of recognized speech, in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Valid reports whether the segment has a non-negative start strictly before
// its end.
func (s Segment) Valid() bool {
	if math.IsNaN(s.Start) || math.IsNaN(s.End) || math.IsInf(s.Start, 0) || math.IsInf(s.End, 0) {
		return false
	}
	return s.Start >= 0 && s.Start < s.End
}

const (
	defaultStyleName = "Default"

	styleFormat  = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"
	eventsFormat = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"
)

// FormatTime renders seconds as H:MM:SS.CC. Every component is truncated, so
// 59.999 never rounds up into the next minute. Negative and NaN input
// renders as zero.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || seconds <= 0 {
		return "0:00:00.00"
	}
	if seconds > math.MaxInt32 {
		seconds = math.MaxInt32
	}
	total := centiseconds(seconds)
	hours := total / 360000
	minutes := (total / 6000) % 60
	secs := (total / 100) % 60
	centis := total % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}

// centiseconds truncates the shortest decimal form of seconds to hundredths.
// Working on the decimal digits keeps 0.29 at 29 (0.29*100 is
// 28.999999999999996) without letting 59.999999995 reach 6000.
func centiseconds(seconds float64) int64 {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(seconds, 'f', -1, 64), ".")
	frac = (frac + "00")[:2]
	w, _ := strconv.ParseInt(whole, 10, 64)
	c, _ := strconv.ParseInt(frac, 10, 64)
	return w*100 + c
}

// Render builds an Advanced SubStation Alpha document with one Dialogue line
// per segment in the order given. It performs no I/O.
func Render(language string, segments []Segment, style config.SubtitleStyle) string {
	name := styleName(style)

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("Title: Audio Transcription\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("PlayDepth: 0\n")
	b.WriteString("Collisions: Normal\n")
	b.WriteString("ScaledBorderAndShadow: yes\n")
	if lang := strings.TrimSpace(language); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}
	b.WriteString("\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString(styleFormat)
	b.WriteString("\n")
	b.WriteString(styleLine(name, style))
	b.WriteString("\n\n")

	b.WriteString("[Events]\n")
	b.WriteString(eventsFormat)
	b.WriteString("\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
			FormatTime(seg.Start), FormatTime(seg.End), name, dialogueText(seg.Text))
	}
	return b.String()
}

// Write stores a rendered document at {dir}/{id}.{lang}.ass and returns the
// path. Failures are reported as services.ErrSubtitleIO.
func Write(dir, inferenceID, language, document string) (string, error) {
	if strings.TrimSpace(language) == "" {
		return "", services.Wrap(services.ErrSubtitleIO, stage.EncodeSubtitles.String(), "write", "empty language", nil)
	}
	path := workspace.SubtitlePath(dir, inferenceID, language)
	if err := fileutil.WriteAtomic(path, []byte(document), 0o644); err != nil {
		return "", services.Wrap(services.ErrSubtitleIO, stage.EncodeSubtitles.String(), "write", path, err)
	}
	return path, nil
}

func styleName(style config.SubtitleStyle) string {
	if name := strings.TrimSpace(style.Name); name != "" {
		return name
	}
	return defaultStyleName
}

func styleLine(name string, s config.SubtitleStyle) string {
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d",
		name, s.Fontname, s.Fontsize,
		s.PrimaryColour, s.SecondaryColour, s.OutlineColour, s.BackColour,
		s.Bold, s.Italic, s.Underline, s.StrikeOut,
		s.ScaleX, s.ScaleY, s.Spacing, s.Angle,
		s.BorderStyle, s.Outline, s.Shadow, s.Alignment,
		s.MarginL, s.MarginR, s.MarginV, s.Encoding,
	)
}

var newlineReplacer = strings.NewReplacer("\r\n", `\N`, "\n", `\N`, "\r", `\N`)

// dialogueText keeps a segment on one physical line; ASS uses \N for breaks.
func dialogueText(text string) string {
	return newlineReplacer.Replace(strings.TrimSpace(text))
}
