package export

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Placeholder is the token replaced by the rendered paths.
const Placeholder = "{{PATHS}}"

// Sprite-center correction applied to every simulator position.
const (
	OffsetX = 8
	OffsetY = 16
)

// Style controls how trajectory paths are stroked.
type Style struct {
	Stroke      string
	Opacity     float64
	StrokeWidth float64
	// Origin is the fixed point every path starts from, in canvas units.
	OriginX, OriginY float64
}

func DefaultStyle() Style {
	return Style{
		Stroke:      "#f8bf00",
		Opacity:     0.2,
		StrokeWidth: 3,
		OriginX:     40,
		OriginY:     176,
	}
}

// Labeled is a trajectory with the title shown when hovering its path.
type Labeled struct {
	Label string
	Trace dynamo.Trajectory
}

// RenderPath renders one trajectory as an SVG path element using the
// default style.
func RenderPath(label string, traj dynamo.Trajectory) string {
	return DefaultStyle().RenderPath(label, traj)
}

// RenderPath renders one trajectory as an SVG path element. Sentinel states
// are skipped and the label is escaped.
func (s Style) RenderPath(label string, traj dynamo.Trajectory) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-opacity="%s" stroke-width="%s" d="M%s %s`,
		html.EscapeString(s.Stroke), num(s.Opacity), num(s.StrokeWidth), num(s.OriginX), num(s.OriginY))

	for _, st := range traj.States {
		if st.IsSentinel() {
			continue
		}
		fmt.Fprintf(&sb, " L%s %s", num(st.X+OffsetX), num(st.Y+OffsetY))
	}

	fmt.Fprintf(&sb, `"><title>%s</title></path>`, html.EscapeString(label))
	return sb.String()
}

// RenderPaths renders every trajectory and joins them with newlines.
func (s Style) RenderPaths(traces []Labeled) string {
	paths := make([]string, len(traces))
	for i, t := range traces {
		paths[i] = s.RenderPath(t.Label, t.Trace)
	}
	return strings.Join(paths, "\n")
}

// Splice replaces the placeholder in template with the rendered paths.
func (s Style) Splice(template string, traces []Labeled) (string, error) {
	if !strings.Contains(template, Placeholder) {
		return "", fmt.Errorf("%w: %s", dynamo.ErrPlaceholderMissing, Placeholder)
	}
	return strings.Replace(template, Placeholder, s.RenderPaths(traces), 1), nil
}

// Export reads the template, splices in the rendered paths and writes the
// result to outputPath. The output is only touched once the template has been
// read and spliced, and is replaced atomically.
func Export(traces []Labeled, templatePath, outputPath string) error {
	return DefaultStyle().Export(traces, templatePath, outputPath)
}

func (s Style) Export(traces []Labeled, templatePath, outputPath string) error {
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", dynamo.ErrTemplateNotFound, templatePath)
		}
		return fmt.Errorf("%w: %s: %v", dynamo.ErrTemplateNotFound, templatePath, err)
	}

	doc, err := s.Splice(string(tmpl), traces)
	if err != nil {
		return fmt.Errorf("%s: %w", templatePath, err)
	}
	return writeFile(outputPath, []byte(doc))
}

// Standalone renders the paths into a bare SVG document for use without a
// level template.
func (s Style) Standalone(traces []Labeled, width, height int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#5c94fc"/>
`, width, height, width, height)
	sb.WriteString(s.RenderPaths(traces))
	sb.WriteString("\n</svg>\n")
	return sb.String()
}

// WriteStandalone writes a Standalone document to outputPath.
func (s Style) WriteStandalone(traces []Labeled, width, height int, outputPath string) error {
	return writeFile(outputPath, []byte(s.Standalone(traces, width, height)))
}

func writeFile(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", dynamo.ErrWriteFailure, path, err)
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
