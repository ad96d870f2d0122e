package session

import (
	"math"

	"github.com/andresmejia3/biomech/internal/types"
)

// Stats computes min/max/mean per joint over the samples where the angle is present.
// Joints that were never present report zero values and Missing equal to the sample count.
func Stats(s types.Session) []types.JointStats {
	out := make([]types.JointStats, 0, types.NumJoints)
	for _, j := range types.AllJoints {
		st := types.JointStats{Joint: j.String(), Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, sample := range s.JointData {
			v, ok := sample.Angles.Get(j)
			if !ok {
				st.Missing++
				continue
			}
			st.Count++
			sum += v
			st.Min = math.Min(st.Min, v)
			st.Max = math.Max(st.Max, v)
		}
		if st.Count == 0 {
			st.Min, st.Max = 0, 0
		} else {
			st.Mean = sum / float64(st.Count)
		}
		out = append(out, st)
	}
	return out
}

// Summarize builds the listing view of a session.
func Summarize(s types.Session) types.SessionSummary {
	return types.SessionSummary{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		SampleCount: len(s.JointData),
	}
}
