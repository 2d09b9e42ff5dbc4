package effects

// Lerp performs linear interpolation between a and b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// EaseInOutCubic applies smooth easing: 4t³ on the first half, mirrored on the second.
func EaseInOutCubic(t float64) float64 {
	t = Clamp01(t)
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// Clamp01 limits t to [0, 1].
func Clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
