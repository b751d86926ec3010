package engine

// Sentiment is a polarity/subjectivity pair, each rounded to 2 decimals.
type Sentiment struct {
	Polarity     float64 `json:"polarity"`
	Subjectivity float64 `json:"subjectivity"`
}

// Reply is a reply to a top-level comment.
type Reply struct {
	Text        string     `json:"text"`
	Author      string     `json:"author"`
	Likes       int64      `json:"likes"`
	PublishedAt string     `json:"publishedAt,omitempty"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
}

// Comment is a top-level comment with its replies.
type Comment struct {
	Text        string     `json:"text"`
	Author      string     `json:"author"`
	Likes       int64      `json:"likes"`
	PublishedAt string     `json:"publishedAt,omitempty"`
	Replies     []Reply    `json:"replies"`
	Sentiment   *Sentiment `json:"sentiment,omitempty"`
}

// TotalLikes is the comment's own likes plus the likes of its replies.
func (c Comment) TotalLikes() int64 {
	total := c.Likes
	for _, r := range c.Replies {
		total += r.Likes
	}
	return total
}

// CountWithReplies returns the number of comments plus all their replies.
func CountWithReplies(comments []Comment) int {
	n := len(comments)
	for _, c := range comments {
		n += len(c.Replies)
	}
	return n
}

// VideoStats holds counters from the Data API statistics part.
type VideoStats struct {
	LikeCount    int64 `json:"likeCount"`
	CommentCount int64 `json:"commentCount"`
	ViewCount    int64 `json:"viewCount"`
}

// CommentSet is what a comment source returns for one video.
type CommentSet struct {
	Source   string     `json:"source"`
	Comments []Comment  `json:"comments"`
	Stats    VideoStats `json:"stats"`

	// Scrape path only: the raw header label and its parsed value
	// (-1 when the label format is unrecognized).
	CountDisplayed string `json:"comment_count_displayed,omitempty"`
	CountParsed    int64  `json:"comment_count_parsed,omitempty"`
}

// TranscriptSegment is one timed caption line.
type TranscriptSegment struct {
	Start    float64 `json:"start"`    // seconds
	Duration float64 `json:"duration"` // seconds
	Text     string  `json:"text"`
}
