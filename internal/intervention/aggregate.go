package intervention

// Aggregate reduces raw per-student scores to one average per area. Areas
// missing from the input or carrying no values get a no-data entry instead of
// an error; individual values are never forwarded past this point.
func Aggregate(scores ScoreSet) AggregatedScores {
	out := make(AggregatedScores, len(Areas()))
	for _, area := range Areas() {
		values := scores[area]
		if len(values) == 0 {
			out[area] = AreaAverage{}
			continue
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		out[area] = AreaAverage{
			Average: sum / float64(len(values)),
			HasData: true,
		}
	}
	return out
}
