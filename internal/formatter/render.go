package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/echoes/internal/models"
)

// Styles is the default terminal palette.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

func trackLine(t models.Track) string {
	return fmt.Sprintf("%s - %s", artists(t), t.Title)
}

// RenderTracks lists tracks with their ids.
func RenderTracks(tracks []models.Track) string {
	if len(tracks) == 0 {
		return Styles.Warn("No tracks found")
	}

	var b strings.Builder
	for i, t := range tracks {
		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, trackLine(t), Styles.Help(t.ID))
	}
	return b.String()
}

// RenderAnalysis shows the method tag, any degradation note, and the source audio features.
func RenderAnalysis(a models.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Method: %s\n", Styles.OK(a.Method))
	if a.Degraded() {
		fmt.Fprintf(&b, "%s\n", Styles.Warn(a.Note))
	}
	if f := a.AudioFeatures; f != nil {
		fmt.Fprintf(&b, "Features: danceability %.2f  energy %.2f  valence %.2f  tempo %.0f\n",
			f.Danceability, f.Energy, f.Valence, f.Tempo)
	}
	return b.String()
}

// RenderRecommendation renders a ranked result with per-signal breakdowns.
func RenderRecommendation(rec *models.Recommendation) string {
	var b strings.Builder
	b.WriteString(Styles.Title("Songs like " + trackLine(rec.SourceTrack)))
	b.WriteString("\n")
	b.WriteString(RenderAnalysis(rec.Analysis))

	w := rec.EffectiveWeights
	b.WriteString(Styles.Help(fmt.Sprintf("weights: lyrics %.2f  spotify %.2f  audio %.2f", w.Lyrics, w.Spotify, w.Audio)))
	b.WriteString("\n\n")

	if len(rec.Recommendations) == 0 {
		b.WriteString(Styles.Warn("No recommendations"))
		b.WriteString("\n")
		return b.String()
	}

	for i, c := range rec.Recommendations {
		fmt.Fprintf(&b, "%2d. %s %s %s\n", i+1, Styles.OK(score(c.Score)), trackLine(c.Track),
			Styles.Help(fmt.Sprintf("[lyrics %s  spotify %s  audio %s]",
				score(c.Breakdown.Lyrics), score(c.Breakdown.Spotify), score(c.Breakdown.Audio))))
	}
	return b.String()
}

// RenderPlaylist confirms a created playlist.
func RenderPlaylist(p *models.PlaylistResult) string {
	return fmt.Sprintf("%s %s (%d tracks)\n%s\n", Styles.OK("✓"), p.ID, p.TrackCount, p.URL)
}

// RenderError formats an error for the terminal.
func RenderError(err error) string {
	return Styles.Err("✗ " + err.Error())
}
