package sequence

// ItemState reports where a single activity sits relative to the cursor.
type ItemState string

const (
	ItemComplete ItemState = "complete"
	ItemCurrent  ItemState = "current"
	ItemPending  ItemState = "pending"
)

// ItemStatus pairs an activity with its progress state.
type ItemStatus struct {
	ActivityID string    `json:"activity_id"`
	State      ItemState `json:"state"`
}

// Report is the pure progress derivation over a sequence position. It holds
// no state of its own and is recomputed on every query.
type Report struct {
	CompletedCount  int          `json:"completed_count"`
	CurrentIndex    int          `json:"current_index"`
	TotalCount      int          `json:"total_count"`
	PercentComplete float64      `json:"percent_complete"`
	Items           []ItemStatus `json:"items"`
}

// Progress derives the progress report for a sequence with the cursor at
// the given position. A cursor equal to Len means every item is complete
// and the percentage is exactly 100.
func Progress(seq *Sequence, cursor int) Report {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > seq.Len() {
		cursor = seq.Len()
	}

	items := make([]ItemStatus, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		state := ItemPending
		switch {
		case i < cursor:
			state = ItemComplete
		case i == cursor:
			state = ItemCurrent
		}
		items[i] = ItemStatus{ActivityID: seq.At(i).ID, State: state}
	}

	return Report{
		CompletedCount:  cursor,
		CurrentIndex:    cursor,
		TotalCount:      seq.Len(),
		PercentComplete: float64(cursor) / float64(seq.Len()) * 100,
		Items:           items,
	}
}
