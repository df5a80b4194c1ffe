package viz

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ergoscan/internal/pose"
)

// Default PNG size of a pose plot.
const (
	PoseWidth  = 6 * vg.Inch
	PoseHeight = 8 * vg.Inch
)

// skeleton lists the landmark pairs joined by bones.
var skeleton = [][2]string{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftShoulder, pose.LeftElbow}, {pose.LeftElbow, pose.LeftWrist},
	{pose.RightShoulder, pose.RightElbow}, {pose.RightElbow, pose.RightWrist},
	{pose.LeftShoulder, pose.LeftHip}, {pose.RightShoulder, pose.RightHip},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftHip, pose.LeftKnee}, {pose.LeftKnee, pose.LeftAnkle},
	{pose.RightHip, pose.RightKnee}, {pose.RightKnee, pose.RightAnkle},
}

var (
	jointColor = color.RGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff}
	boneColor  = color.RGBA{R: 0x42, G: 0x42, B: 0x42, A: 0xff}
)

// PlotPose builds a plot of landmarks with their skeleton. Image y grows
// downwards, so y is flipped to draw the figure upright.
func PlotPose(landmarks []pose.Landmark, title string) (*plot.Plot, error) {
	if len(landmarks) == 0 {
		return nil, errors.New("no landmarks to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "-y"
	p.Add(plotter.NewGrid())

	byName := make(map[string]pose.Landmark, len(landmarks))
	pts := make(plotter.XYs, len(landmarks))
	for i, lm := range landmarks {
		pts[i] = plotter.XY{X: lm.X, Y: -lm.Y}
		byName[lm.Name] = lm
	}

	for _, bone := range skeleton {
		a, okA := byName[bone[0]]
		b, okB := byName[bone[1]]
		if !okA || !okB {
			continue
		}
		line, err := plotter.NewLine(plotter.XYs{{X: a.X, Y: -a.Y}, {X: b.X, Y: -b.Y}})
		if err != nil {
			return nil, fmt.Errorf("failed to create bone line: %w", err)
		}
		line.Color = boneColor
		line.Width = vg.Points(1.5)
		p.Add(line)
	}

	joints, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create joint scatter: %w", err)
	}
	joints.GlyphStyle.Color = jointColor
	joints.GlyphStyle.Radius = vg.Points(2.5)
	p.Add(joints)
	p.Legend.Add("landmarks", joints)
	p.Legend.Top = true
	return p, nil
}

// WritePosePNG renders a pose plot as PNG to w.
func WritePosePNG(w io.Writer, landmarks []pose.Landmark, title string) error {
	p, err := PlotPose(landmarks, title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(PoseWidth, PoseHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render pose plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write pose plot: %w", err)
	}
	return nil
}

// SavePosePNG renders a pose plot to a file. The format follows the file
// extension.
func SavePosePNG(path string, landmarks []pose.Landmark, title string) error {
	p, err := PlotPose(landmarks, title)
	if err != nil {
		return err
	}
	if err := p.Save(PoseWidth, PoseHeight, path); err != nil {
		return fmt.Errorf("failed to save pose plot: %w", err)
	}
	return nil
}
