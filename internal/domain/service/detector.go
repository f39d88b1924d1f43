package service

import "AutoEye/internal/domain/models"

// Detector finds one kind of element in a bar series and advances element lifecycles.
// Implementations are pure: the same bars always produce the same elements.
type Detector interface {
	Kind() models.Kind
	// Detect returns every element found in bars. pointSize scales point-based thresholds.
	Detect(symbol, timeframe string, bars []models.Bar, pointSize float64) []*models.Element
	// UpdateStatus advances e using bars after its formation. Terminal elements are left as is.
	UpdateStatus(e *models.Element, bars []models.Bar)
}
