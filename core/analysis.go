package core

import "context"

// AnalysisService produces a text report from pre-formatted grade rows.
type AnalysisService interface {
	AnalyzeGrades(ctx context.Context, studentName string, rows []string) (string, error)
}
