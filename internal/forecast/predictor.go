package forecast

import (
	"fmt"
	"math"

	"StockCast/internal/domain/errs"
)

// PredictNext predicts the price that follows window. The window is scaled, fed to the model as a
// (1, TimeStep, 1) batch, and the single output is mapped back to price space. window is not modified.
func PredictNext(window []float64, model Model, scaler Scaler) (float64, error) {
	const op = "forecast.PredictNext"

	if len(window) != TimeStep {
		return 0, errs.InvalidArgument(op, "window must contain exactly %d prices, got %d", TimeStep, len(window))
	}
	if model == nil || scaler == nil {
		return 0, errs.Unavailable(op, "model artifacts are not loaded")
	}

	column := make([][]float64, len(window))
	for i, v := range window {
		column[i] = []float64{v}
	}

	scaled, err := scaler.Transform(column)
	if err != nil {
		return 0, errs.Internal(op, err, "scaling failed")
	}
	if len(scaled) != TimeStep {
		return 0, errs.Internal(op, fmt.Errorf("scaler returned %d rows", len(scaled)), "scaling failed")
	}

	seq := make([][]float64, TimeStep)
	for i, row := range scaled {
		if len(row) != 1 {
			return 0, errs.Internal(op, fmt.Errorf("scaled row %d has %d columns", i, len(row)), "scaling failed")
		}
		seq[i] = []float64{row[0]}
	}

	out, err := model.Predict([][][]float64{seq})
	if err != nil {
		return 0, errs.Internal(op, err, "model inference failed")
	}
	if len(out) != 1 || len(out[0]) != 1 {
		return 0, errs.Internal(op, fmt.Errorf("model returned shape %s", shapeOf(out)), "model inference failed")
	}

	raw, err := scaler.InverseTransform([][]float64{{out[0][0]}})
	if err != nil {
		return 0, errs.Internal(op, err, "inverse scaling failed")
	}
	if len(raw) != 1 || len(raw[0]) != 1 {
		return 0, errs.Internal(op, fmt.Errorf("inverse returned shape %s", shapeOf(raw)), "inverse scaling failed")
	}

	price := raw[0][0]
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errs.Internal(op, fmt.Errorf("non-finite prediction %v", price), "model inference failed")
	}
	return price, nil
}

func shapeOf(x [][]float64) string {
	if len(x) == 0 {
		return "(0)"
	}
	return fmt.Sprintf("(%d,%d)", len(x), len(x[0]))
}
