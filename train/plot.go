package train

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHistory writes a PNG of the per-epoch train (blue) and validation
// (red) RMSE curves for one training run.
func PlotHistory(h *History, title, outPath string) error {
	if h == nil || h.Epochs == 0 {
		return fmt.Errorf("empty training history")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "rmse"

	trainLine, err := plotter.NewLine(rmseXYs(h.TrainLoss))
	if err != nil {
		return err
	}
	trainLine.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	trainLine.Width = vg.Points(1.2)
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	validLine, err := plotter.NewLine(rmseXYs(h.ValidLoss))
	if err != nil {
		return err
	}
	validLine.Color = color.RGBA{R: 200, G: 30, B: 30, A: 220}
	validLine.Width = vg.Points(1.2)
	p.Add(validLine)
	p.Legend.Add("valid", validLine)

	p.Add(plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return fmt.Errorf("failed to save loss plot: %w", err)
	}
	return nil
}

func rmseXYs(losses []float64) plotter.XYs {
	xys := make(plotter.XYs, len(losses))
	for i, l := range losses {
		xys[i] = plotter.XY{X: float64(i), Y: math.Sqrt(l)}
	}
	return xys
}
