package codec

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// #region types
// PredictionView is the prediction as shown to the presentation layer.
type PredictionView struct {
	Application string
	Confidence  float64
	OK          bool
}

// HistoryView carries both history rings as 0/1 cells.
type HistoryView struct {
	Predicted []int
	Actual    []int
	Cursor    int
	Written   int
}

// StateView is everything a presenter needs to redraw.
type StateView struct {
	State      string
	Profile    string
	Prediction PredictionView
	History    HistoryView
	HitRate    float64
}

// ChooseView is the result of one Choose call.
type ChooseView struct {
	Chosen    string
	Predicted PredictionView // the prediction the choice was compared against
	Hit       bool
	Cursor    int
	Unknown   bool
	Inserted  bool
	Persisted bool
	// Warning holds the storage error text when Persisted is false.
	Warning string
	State   StateView
}

// #endregion types

// #region encode
func predictionFields(p PredictionView) map[string]any {
	return map[string]any{
		"application": p.Application,
		"confidence":  p.Confidence,
		"ok":          p.OK,
	}
}

func cells(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func stateFields(v StateView) map[string]any {
	return map[string]any{
		"state":      v.State,
		"profile":    v.Profile,
		"prediction": predictionFields(v.Prediction),
		"history": map[string]any{
			"predicted": cells(v.History.Predicted),
			"actual":    cells(v.History.Actual),
			"cursor":    v.History.Cursor,
			"written":   v.History.Written,
		},
		"hit_rate": v.HitRate,
	}
}

func chooseFields(v ChooseView) map[string]any {
	return map[string]any{
		"chosen":    v.Chosen,
		"predicted": predictionFields(v.Predicted),
		"hit":       v.Hit,
		"cursor":    v.Cursor,
		"unknown":   v.Unknown,
		"inserted":  v.Inserted,
		"persisted": v.Persisted,
		"warning":   v.Warning,
		"state":     stateFields(v.State),
	}
}

// #endregion encode

// #region decode
func decodePrediction(s *structpb.Struct) PredictionView {
	f := s.GetFields()
	return PredictionView{
		Application: f["application"].GetStringValue(),
		Confidence:  f["confidence"].GetNumberValue(),
		OK:          f["ok"].GetBoolValue(),
	}
}

func decodeCells(l *structpb.ListValue) []int {
	values := l.GetValues()
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v.GetNumberValue())
	}
	return out
}

func decodeState(s *structpb.Struct) StateView {
	f := s.GetFields()
	h := f["history"].GetStructValue().GetFields()
	return StateView{
		State:      f["state"].GetStringValue(),
		Profile:    f["profile"].GetStringValue(),
		Prediction: decodePrediction(f["prediction"].GetStructValue()),
		History: HistoryView{
			Predicted: decodeCells(h["predicted"].GetListValue()),
			Actual:    decodeCells(h["actual"].GetListValue()),
			Cursor:    int(h["cursor"].GetNumberValue()),
			Written:   int(h["written"].GetNumberValue()),
		},
		HitRate: f["hit_rate"].GetNumberValue(),
	}
}

func decodeChoose(s *structpb.Struct) ChooseView {
	f := s.GetFields()
	return ChooseView{
		Chosen:    f["chosen"].GetStringValue(),
		Predicted: decodePrediction(f["predicted"].GetStructValue()),
		Hit:       f["hit"].GetBoolValue(),
		Cursor:    int(f["cursor"].GetNumberValue()),
		Unknown:   f["unknown"].GetBoolValue(),
		Inserted:  f["inserted"].GetBoolValue(),
		Persisted: f["persisted"].GetBoolValue(),
		Warning:   f["warning"].GetStringValue(),
		State:     decodeState(f["state"].GetStructValue()),
	}
}

// #endregion decode
