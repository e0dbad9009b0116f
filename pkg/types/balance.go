package types

// Balance is a venue wallet balance for one asset
type Balance struct {
	Asset     string
	Total     float64
	Available float64
	Locked    float64
}
