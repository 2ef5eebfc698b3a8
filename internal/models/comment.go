package models

// Comment represents a comment on a thread. A comment with a non-nil
// ParentID is a reply and is excluded from top-level enumeration.
type Comment struct {
	ID        string   `json:"id"`
	ThreadID  string   `json:"thread_id"`
	UserID    string   `json:"user_id"`
	Body      string   `json:"body"`
	Timestamp string   `json:"timestamp"` // epoch milliseconds, string-encoded
	LikedBy   []string `json:"liked_by"`
	Likes     int      `json:"likes"`
	ParentID  *string  `json:"parent_id,omitempty"`
}

// IsReply reports whether the comment is a reply to another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}

// LikedByUser reports whether userID is present in the comment's liked-by set.
func (c *Comment) LikedByUser(userID string) bool {
	for _, id := range c.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// WithLike returns a copy of the comment with userID's like toggled.
// liked is the caller's current state: true removes the like, false adds it.
func (c Comment) WithLike(userID string, liked bool) Comment {
	if liked {
		c.Likes--
		likedBy := make([]string, 0, len(c.LikedBy))
		for _, id := range c.LikedBy {
			if id != userID {
				likedBy = append(likedBy, id)
			}
		}
		c.LikedBy = likedBy
	} else {
		c.Likes++
		likedBy := make([]string, len(c.LikedBy), len(c.LikedBy)+1)
		copy(likedBy, c.LikedBy)
		c.LikedBy = append(likedBy, userID)
	}
	return c
}
