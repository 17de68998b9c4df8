package common

import "context"

type contextKey string

const reportIDKey contextKey = "report_id"

// WithReportID tags ctx with the report being generated
func WithReportID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reportIDKey, id)
}

// ReportIDFrom returns the report ID carried by ctx, if any
func ReportIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(reportIDKey).(string)
	return id
}
