package profile

// UpdateProfileRequest updates the caller's profile
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required,min=2,max=50"`
	Bio         string `json:"bio" validate:"max=500"`
	Gender      string `json:"gender" validate:"gender"`
	Country     string `json:"country" validate:"max=2"`
}

// AvatarResponse returns the stored avatar URLs
type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
	ThumbURL  string `json:"thumb_url"`
}
