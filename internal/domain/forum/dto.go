package forum

// CreateThreadRequest opens a new discussion
type CreateThreadRequest struct {
	Title string `json:"title" validate:"required,min=4,max=150"`
	Body  string `json:"body" validate:"required,min=10,max=10000"`
}

// CreatePostRequest replies to a thread
type CreatePostRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}
