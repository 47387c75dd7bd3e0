package audit

import "errors"

var (
	ErrNoRegulationsFound   = errors.New("No regulations found in database. Please crawl regulations first.")
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrRunInProgress        = errors.New("an audit run is already in progress")
	ErrNoTransactions       = errors.New("no transactions to audit")
	ErrReportNotFound       = errors.New("report not found")
)
