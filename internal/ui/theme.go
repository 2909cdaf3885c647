package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/casedesk/internal/comms"
	"github.com/Ashfaaq98/casedesk/internal/review"
	"github.com/Ashfaaq98/casedesk/internal/triage"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	// Widget colors
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Accent      tcell.Color
	Header      tcell.Color

	// Table colors
	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableRowMuted tcell.Color

	// Status lanes: first, middle and last position of a status order
	StatusOpen    tcell.Color
	StatusWaiting tcell.Color
	StatusDone    tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string
	TagUser        string
	TagAssistant   string
}

// helpers
func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),
		Accent:      hex("#2dd4bf"),
		Header:      hex("#eab308"),

		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableRowMuted: hex("#94a3b8"),

		StatusOpen:    hex("#ffaf5f"),
		StatusWaiting: hex("#ffd75f"),
		StatusDone:    hex("#87ffaf"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",
		TagUser:        "#4aa8ff",
		TagAssistant:   "#22c55e",
	}
}

func themeLight() Theme {
	return Theme{
		Bg:          hex("#f6f8fa"),
		Surface:     hex("#ffffff"),
		Border:      hex("#d0d7de"),
		FocusBorder: hex("#0969da"),
		SelectionBg: hex("#ddf4ff"),
		SelectionFg: hex("#0b1f33"),
		TextPrimary: hex("#1f2328"),
		TextMuted:   hex("#57606a"),
		Accent:      hex("#0a7ea4"),
		Header:      hex("#9a6700"),

		TableHeader:   hex("#9a6700"),
		TableHeaderBg: hex("#eaeef2"),
		TableRow:      hex("#1f2328"),
		TableRowMuted: hex("#57606a"),

		StatusOpen:    hex("#bc4c00"),
		StatusWaiting: hex("#9a6700"),
		StatusDone:    hex("#1a7f37"),

		TagTextPrimary: "#1f2328",
		TagMuted:       "#57606a",
		TagAccent:      "#0a7ea4",
		TagSuccess:     "#1a7f37",
		TagWarning:     "#9a6700",
		TagError:       "#cf222e",
		TagUser:        "#0969da",
		TagAssistant:   "#1a7f37",
	}
}

func themeHighContrast() Theme {
	return Theme{
		Bg:          tcell.ColorBlack,
		Surface:     tcell.ColorBlack,
		Border:      tcell.ColorWhite,
		FocusBorder: tcell.ColorYellow,
		SelectionBg: tcell.ColorWhite,
		SelectionFg: tcell.ColorBlack,
		TextPrimary: tcell.ColorWhite,
		TextMuted:   tcell.ColorSilver,
		Accent:      tcell.ColorAqua,
		Header:      tcell.ColorYellow,

		TableHeader:   tcell.ColorYellow,
		TableHeaderBg: tcell.ColorBlack,
		TableRow:      tcell.ColorWhite,
		TableRowMuted: tcell.ColorSilver,

		StatusOpen:    tcell.ColorRed,
		StatusWaiting: tcell.ColorYellow,
		StatusDone:    tcell.ColorLime,

		TagTextPrimary: "white",
		TagMuted:       "silver",
		TagAccent:      "aqua",
		TagSuccess:     "lime",
		TagWarning:     "yellow",
		TagError:       "red",
		TagUser:        "aqua",
		TagAssistant:   "lime",
	}
}

var themes = map[string]func() Theme{
	"dark":          themeDark,
	"light":         themeLight,
	"high-contrast": themeHighContrast,
}

// themeCycle is the order used by the theme toggle key.
var themeCycle = []string{"dark", "light", "high-contrast"}

// themeByName falls back to dark for unknown names.
func themeByName(name string) (string, Theme) {
	name = strings.ToLower(strings.TrimSpace(name))
	if f, ok := themes[name]; ok {
		return name, f()
	}
	return "dark", themeDark()
}

func nextTheme(name string) string {
	for i, n := range themeCycle {
		if n == name {
			return themeCycle[(i+1)%len(themeCycle)]
		}
	}
	return themeCycle[0]
}

func detectTrueColor() bool {
	// Best-effort detection without initializing screen
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}

// statusColor colors a status by its lane in order.
func (t Theme) statusColor(order triage.StatusOrder, st triage.Status) tcell.Color {
	switch rank := order.Rank(st); {
	case rank == 0:
		return t.StatusOpen
	case rank >= len(order)-1:
		return t.StatusDone
	default:
		return t.StatusWaiting
	}
}

func (t Theme) priorityColor(p review.Priority) tcell.Color {
	switch {
	case p >= review.PriorityHigh:
		return t.StatusOpen
	case p == review.PriorityMedium:
		return t.StatusWaiting
	default:
		return t.TableRowMuted
	}
}

func (t Theme) channelTag(ch comms.Channel) string {
	if ch == comms.ChannelEmail {
		return t.TagAccent
	}
	return t.TagMuted
}

// applyToStyles pushes theme colors into tview's global defaults so widgets
// created later pick them up.
func (t Theme) applyToStyles() {
	tview.Styles.PrimitiveBackgroundColor = t.Bg
	tview.Styles.ContrastBackgroundColor = t.Surface
	tview.Styles.MoreContrastBackgroundColor = t.SelectionBg
	tview.Styles.BorderColor = t.Border
	tview.Styles.TitleColor = t.Header
	tview.Styles.GraphicsColor = t.Border
	tview.Styles.PrimaryTextColor = t.TextPrimary
	tview.Styles.SecondaryTextColor = t.Accent
	tview.Styles.TertiaryTextColor = t.TextMuted
	tview.Styles.InverseTextColor = t.SelectionFg
	tview.Styles.ContrastSecondaryTextColor = t.TextMuted
}
