package feed

// ActivityStreams verb URIs emitted by StatusNet-compatible servers.
const (
	VerbPost      = "http://activitystrea.ms/schema/1.0/post"
	VerbComment   = "http://activitystrea.ms/schema/1.0/comment"
	VerbFavourite = "http://activitystrea.ms/schema/1.0/favorite"
	VerbShare     = "http://activitystrea.ms/schema/1.0/share"
	VerbFollow    = "http://activitystrea.ms/schema/1.0/follow"
	VerbDelete    = "delete" // bare word, odd but true
)

// classifyVerb maps the raw verb URI onto the entry's boolean flags. Verbs
// outside the table leave every flag false.
func classifyVerb(e *Entry) {
	e.IsPost = e.Verb == VerbPost
	e.IsComment = e.Verb == VerbComment
	e.IsFavourite = e.Verb == VerbFavourite
	e.IsRepeat = e.Verb == VerbShare
	e.IsDelete = e.Verb == VerbDelete
}
