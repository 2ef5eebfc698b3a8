package store

const (
	// ThreadsPrefix is the subtree holding thread documents.
	ThreadsPrefix = "threads/"
	// UsersPrefix is the subtree holding user documents.
	UsersPrefix = "users/"
	// CommentsPrefix is the subtree holding comment documents.
	CommentsPrefix = "comments/"
	// BlobsPrefix is the subtree holding uploaded media blobs.
	BlobsPrefix = "blobs/"
)

func ThreadPath(id string) string { return ThreadsPrefix + id }

func UserPath(id string) string { return UsersPrefix + id }

func CommentPath(id string) string { return CommentsPrefix + id }

func BlobPath(hash string) string { return BlobsPrefix + hash }

// FollowersPath is the set of user ids following userID.
func FollowersPath(userID string) string { return "followers/" + userID }

// FollowingPath is the set of user ids that userID follows.
func FollowingPath(userID string) string { return "following/" + userID }

// SearchHistoryPath is the per-user search history document.
func SearchHistoryPath(userID string) string { return "search_history/" + userID }
