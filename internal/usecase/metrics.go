package usecase

type nopMetrics struct{}

func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordElements(string, string, int, int) {}
func (nopMetrics) RecordScenarios(string, int, int) {}
func (nopMetrics) RecordDocumentWrite(string, bool) {}
