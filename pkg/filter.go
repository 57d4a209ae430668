package salvator

// FilterOverflow drops hits whose ADC value is at or below low (noise floor,
// underflow) or at or above high (digitizer saturation). The input is not
// modified and the surviving hits keep their order.
func FilterOverflow(hits []Hit, low, high int) []Hit {
	filtered := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.ADC <= low || h.ADC >= high {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}
