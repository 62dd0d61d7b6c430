package schema

// ClassifyRequest assigns a category to the item at ItemIndex.
type ClassifyRequest struct {
	ItemIndex int `json:"itemIndex"`
	Category  int `json:"category"`
}

// CommentRequest sets the comment of the item at ItemIndex.
type CommentRequest struct {
	ItemIndex int    `json:"itemIndex"`
	Comment   string `json:"comment"`
}

// UnratedRequest looks for the nearest unrated item strictly after (next) or
// before (prev) From.
type UnratedRequest struct {
	From      int       `json:"from"`
	Direction Direction `json:"direction"`
}

// UnratedResponse carries the result of an unrated lookup.
type UnratedResponse struct {
	Index int  `json:"index"`
	Found bool `json:"found"`
}
