package config

// CategoryWeights orders help output; lower weights list first.
var CategoryWeights = map[string]int{
	"🕯️ Information": 0,
	"🎵 Music":        10,
}
