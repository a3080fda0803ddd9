// package formatter renders recommendation results as CSV, Markdown, plain text, and styled terminal output
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
)

func score(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func artists(t models.Track) string {
	return strings.Join(t.Artists, ", ")
}

// ExportToCSV converts a Recommendation to CSV with columns: Rank, ID, Title, Artists, Album, Similarity, Lyrics, Spotify, Audio, URL
func ExportToCSV(rec *models.Recommendation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Rank", "ID", "Title", "Artists", "Album", "Similarity", "Lyrics", "Spotify", "Audio", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, c := range rec.Recommendations {
		record := []string{
			strconv.Itoa(i + 1),
			c.ID,
			c.Title,
			artists(c.Track),
			c.Album,
			score(c.Score),
			score(c.Breakdown.Lyrics),
			score(c.Breakdown.Spotify),
			score(c.Breakdown.Audio),
			c.ExternalURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Recommendation to Markdown with an optional cover image
func ExportToMarkdown(rec *models.Recommendation, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	src := rec.SourceTrack

	fmt.Fprintf(&buf, "# Songs like %s\n\n", src.Title)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Source**: %s - %s\n", artists(src), src.Title)
	fmt.Fprintf(&buf, "**Method**: %s\n", rec.Analysis.Method)
	if rec.Analysis.Note != "" {
		fmt.Fprintf(&buf, "**Note**: %s\n", rec.Analysis.Note)
	}
	w := rec.EffectiveWeights
	fmt.Fprintf(&buf, "**Weights**: lyrics %.2f, spotify %.2f, audio %.2f\n\n", w.Lyrics, w.Spotify, w.Audio)

	buf.WriteString("## Recommendations\n\n")
	buf.WriteString("| # | Track | Artists | Similarity | Lyrics | Spotify | Audio |\n")
	buf.WriteString("|---|-------|---------|------------|--------|---------|-------|\n")
	for i, c := range rec.Recommendations {
		title := c.Title
		if c.ExternalURL != "" {
			title = fmt.Sprintf("[%s](%s)", c.Title, c.ExternalURL)
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i+1, title, artists(c.Track), score(c.Score),
			score(c.Breakdown.Lyrics), score(c.Breakdown.Spotify), score(c.Breakdown.Audio))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Recommendation to plain text
func ExportToText(rec *models.Recommendation) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Source: %s - %s\n", artists(rec.SourceTrack), rec.SourceTrack.Title)
	fmt.Fprintf(&buf, "Method: %s\n", rec.Analysis.Method)
	if rec.Analysis.Note != "" {
		fmt.Fprintf(&buf, "Note: %s\n", rec.Analysis.Note)
	}
	fmt.Fprintf(&buf, "Recommendations: %d\n\n", len(rec.Recommendations))

	for i, c := range rec.Recommendations {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, artists(c.Track), c.Title, score(c.Score))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// Metadata is the recommendation header written next to CSV exports
type Metadata struct {
	SourceTrack      models.Track     `json:"sourceTrack"`
	Weights          models.WeightSet `json:"weights"`
	EffectiveWeights models.WeightSet `json:"effectiveWeights"`
	Analysis         models.Analysis  `json:"analysis"`
	Count            int              `json:"count"`
}

// ToMetadataJSON generates a JSON representation of recommendation metadata (without results)
func ToMetadataJSON(rec *models.Recommendation) ([]byte, error) {
	return shared.MarshalJSON(Metadata{
		SourceTrack:      rec.SourceTrack,
		Weights:          rec.Weights,
		EffectiveWeights: rec.EffectiveWeights,
		Analysis:         rec.Analysis,
		Count:            len(rec.Recommendations),
	}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_recommendations.csv and {base}_metadata.json.
//
// Defaults to the source track ID as the base filename.
func WriteCSVExport(rec *models.Recommendation, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = rec.SourceTrackID
	}

	csvData, err := ExportToCSV(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_recommendations.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport writes {dir}/README.md and, when imageURL is set, {dir}/cover.jpg.
//
// Directory name defaults to the source track ID. A failed cover download is reported on stderr and skipped.
func WriteMarkdownExport(rec *models.Recommendation, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = rec.SourceTrackID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.CoverImage = coverImagePath
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(rec, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport writes a plain text export, defaulting to {source}_recommendations.txt.
func WriteTextExport(rec *models.Recommendation, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_recommendations.txt", rec.SourceTrackID)
	}

	textData, err := ExportToText(rec)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport writes the full recommendation as indented JSON, defaulting to {source}.json.
func WriteJSONExport(rec *models.Recommendation, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s.json", rec.SourceTrackID)
	}

	data, err := shared.MarshalJSON(rec, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}

	return path, nil
}
