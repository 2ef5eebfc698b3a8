// Package models contains data structures for the application's domain models.
package models

// Thread represents a single feed entry: text plus an optional image.
type Thread struct {
	ID        string   `json:"id"`
	Body      string   `json:"body"`
	ImageURL  string   `json:"image_url"`
	UserID    string   `json:"user_id"`
	Timestamp string   `json:"timestamp"` // epoch milliseconds, string-encoded
	LikedBy   []string `json:"liked_by"`
	Likes     int      `json:"likes"`
	Comments  int      `json:"comments"`
}

// LikedByUser reports whether userID is present in the thread's liked-by set.
func (t *Thread) LikedByUser(userID string) bool {
	for _, id := range t.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// WithLike returns a copy of the thread with userID's like toggled on or off.
// Likes and LikedBy always move together.
func (t Thread) WithLike(userID string, liked bool) Thread {
	if liked {
		t.Likes--
		likedBy := make([]string, 0, len(t.LikedBy))
		for _, id := range t.LikedBy {
			if id != userID {
				likedBy = append(likedBy, id)
			}
		}
		t.LikedBy = likedBy
	} else {
		t.Likes++
		likedBy := make([]string, len(t.LikedBy), len(t.LikedBy)+1)
		copy(likedBy, t.LikedBy)
		t.LikedBy = append(likedBy, userID)
	}
	return t
}
