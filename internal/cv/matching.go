// Package cv provides the template-scoring primitives the default detector
// uses to evaluate scenario conditions against captured frames.
package cv

import (
	"image"
	"math"
)

// MatchResult contains condition matching results
type MatchResult struct {
	Found      bool
	Location   image.Point
	Confidence float64
}

// MatchMethod defines the template scoring algorithm
type MatchMethod int

const (
	// MatchMethodSAD - Sum of Absolute Differences (fastest)
	MatchMethodSAD MatchMethod = iota
	// MatchMethodSSD - Sum of Squared Differences (balanced)
	MatchMethodSSD
	// MatchMethodNCC - Normalized Cross-Correlation (most accurate)
	MatchMethodNCC
)

// MatchConfig configures condition matching
type MatchConfig struct {
	Method       MatchMethod
	Threshold    float64          // 0.0-1.0, higher = more strict
	SearchRegion *image.Rectangle // Optional: limit search area
}

// DefaultMatchConfig returns recommended settings
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		Method:    MatchMethodSSD,
		Threshold: 0.85,
	}
}

// MatchAt scores a condition image against the frame at a fixed position.
// Scenario conditions are bound to an exact screen area, so the common path
// is a single comparison rather than a scan.
func MatchAt(frame, cond *image.RGBA, at image.Point, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	frameBounds := frame.Bounds()
	condBounds := cond.Bounds()
	w := condBounds.Dx()
	h := condBounds.Dy()

	if at.X < frameBounds.Min.X || at.Y < frameBounds.Min.Y ||
		at.X+w > frameBounds.Max.X || at.Y+h > frameBounds.Max.Y {
		return &MatchResult{Found: false}
	}

	score := calculateMatchScore(frame, cond, at.X, at.Y, config.Method)
	return &MatchResult{
		Found:      score >= config.Threshold,
		Location:   at,
		Confidence: score,
	}
}

// FindTemplate scans for a condition image within the frame and returns the
// best-scoring position
func FindTemplate(frame, cond *image.RGBA, config *MatchConfig) *MatchResult {
	if config == nil {
		config = DefaultMatchConfig()
	}

	frameBounds := frame.Bounds()
	condBounds := cond.Bounds()

	condWidth := condBounds.Dx()
	condHeight := condBounds.Dy()

	if condWidth > frameBounds.Dx() || condHeight > frameBounds.Dy() {
		return &MatchResult{Found: false}
	}

	searchBounds := frameBounds
	if config.SearchRegion != nil {
		searchBounds = config.SearchRegion.Intersect(frameBounds)
		if searchBounds.Empty() {
			return &MatchResult{Found: false, Confidence: 0.0}
		}
	}

	bestScore := 0.0
	bestLocation := image.Point{}
	found := false

	maxY := searchBounds.Max.Y - condHeight
	maxX := searchBounds.Max.X - condWidth

	if maxY < searchBounds.Min.Y || maxX < searchBounds.Min.X {
		// Condition image doesn't fit in the search region
		return &MatchResult{Found: false, Confidence: 0.0}
	}

	for y := searchBounds.Min.Y; y <= maxY; y++ {
		for x := searchBounds.Min.X; x <= maxX; x++ {
			score := calculateMatchScore(frame, cond, x, y, config.Method)

			if score > bestScore {
				bestScore = score
				bestLocation = image.Point{X: x, Y: y}
				if score >= config.Threshold {
					found = true
				}
			}
		}
	}

	return &MatchResult{
		Found:      found,
		Location:   bestLocation,
		Confidence: bestScore,
	}
}

func calculateMatchScore(frame, cond *image.RGBA, x, y int, method MatchMethod) float64 {
	condBounds := cond.Bounds()
	condWidth := condBounds.Dx()
	condHeight := condBounds.Dy()

	switch method {
	case MatchMethodSAD:
		return matchSAD(frame, cond, x, y, condWidth, condHeight)
	case MatchMethodSSD:
		return matchSSD(frame, cond, x, y, condWidth, condHeight)
	case MatchMethodNCC:
		return matchNCC(frame, cond, x, y, condWidth, condHeight)
	default:
		return matchSSD(frame, cond, x, y, condWidth, condHeight)
	}
}

// matchSAD - Sum of Absolute Differences (fastest, least accurate)
func matchSAD(frame, cond *image.RGBA, x, y, width, height int) float64 {
	var sad uint64

	for cy := 0; cy < height; cy++ {
		for cx := 0; cx < width; cx++ {
			fIdx := ((y+cy)*frame.Stride + (x+cx)*4)
			cIdx := (cy*cond.Stride + cx*4)

			sad += uint64(abs(int(frame.Pix[fIdx]) - int(cond.Pix[cIdx])))
			sad += uint64(abs(int(frame.Pix[fIdx+1]) - int(cond.Pix[cIdx+1])))
			sad += uint64(abs(int(frame.Pix[fIdx+2]) - int(cond.Pix[cIdx+2])))
		}
	}

	// Normalize to 0-1 (lower SAD = better match)
	maxSAD := float64(width * height * 3 * 255)
	return 1.0 - (float64(sad) / maxSAD)
}

// matchSSD - Sum of Squared Differences (balanced)
func matchSSD(frame, cond *image.RGBA, x, y, width, height int) float64 {
	var ssd uint64

	for cy := 0; cy < height; cy++ {
		for cx := 0; cx < width; cx++ {
			fIdx := ((y+cy)*frame.Stride + (x+cx)*4)
			cIdx := (cy*cond.Stride + cx*4)

			dr := int(frame.Pix[fIdx]) - int(cond.Pix[cIdx])
			dg := int(frame.Pix[fIdx+1]) - int(cond.Pix[cIdx+1])
			db := int(frame.Pix[fIdx+2]) - int(cond.Pix[cIdx+2])

			ssd += uint64(dr*dr + dg*dg + db*db)
		}
	}

	maxSSD := float64(width * height * 3 * 255 * 255)
	return 1.0 - (float64(ssd) / maxSSD)
}

// matchNCC - Normalized Cross-Correlation (slowest, most accurate)
func matchNCC(frame, cond *image.RGBA, x, y, width, height int) float64 {
	var sumF, sumC, sumFC, sumFF, sumCC float64
	pixelCount := float64(width * height * 3)

	for cy := 0; cy < height; cy++ {
		for cx := 0; cx < width; cx++ {
			fIdx := ((y+cy)*frame.Stride + (x+cx)*4)
			cIdx := (cy*cond.Stride + cx*4)

			for ch := 0; ch < 3; ch++ {
				f := float64(frame.Pix[fIdx+ch])
				c := float64(cond.Pix[cIdx+ch])

				sumF += f
				sumC += c
				sumFC += f * c
				sumFF += f * f
				sumCC += c * c
			}
		}
	}

	numerator := sumFC - (sumF * sumC / pixelCount)
	denomF := math.Sqrt(sumFF - (sumF * sumF / pixelCount))
	denomC := math.Sqrt(sumCC - (sumC * sumC / pixelCount))

	if denomF == 0 || denomC == 0 {
		return 0
	}

	// Correlation coefficient (-1 to 1, normalize to 0-1)
	correlation := numerator / (denomF * denomC)
	return (correlation + 1.0) / 2.0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
