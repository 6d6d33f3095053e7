package models

// StoredResponse is one persisted feed body
type StoredResponse struct {
	ID        int64  `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Response  string `json:"response"`
}

// BridgeRequest is queued by the frame side and consumed by the worker
type BridgeRequest struct {
	Seq   uint64
	Range DateRange
}

// BridgeResult is queued by the worker and drained by the frame side.
// A result with a non-nil Err is a failure sentinel and has no Response.
type BridgeResult struct {
	Seq      uint64
	Range    DateRange
	Response *FeedResponse
	Err      error
}

func (r BridgeResult) Failed() bool {
	return r.Err != nil
}
