package transfer

type TiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type TiktokPublishData struct {
	PublishID string `json:"publish_id"`
}

type TiktokInitResponse struct {
	Data  TiktokPublishData `json:"data"`
	Error TiktokError       `json:"error"`
}

type TiktokVideoPostInfo struct {
	Title          string `json:"title"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableDuet    bool   `json:"disable_duet"`
	DisableComment bool   `json:"disable_comment"`
	DisableStitch  bool   `json:"disable_stitch"`
}

type TiktokVideoSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type TiktokInitRequest struct {
	PostInfo   TiktokVideoPostInfo   `json:"post_info"`
	SourceInfo TiktokVideoSourceInfo `json:"source_info"`
}

type TiktokCreatorInfo struct {
	CreatorUsername         string   `json:"creator_username"`
	PrivacyLevelOptions     []string `json:"privacy_level_options"`
	CommentDisabled         bool     `json:"comment_disabled"`
	DuetDisabled            bool     `json:"duet_disabled"`
	StitchDisabled          bool     `json:"stitch_disabled"`
	MaxVideoPostDurationSec int      `json:"max_video_post_duration_sec"`
}

type TiktokCreatorInfoResponse struct {
	Data  TiktokCreatorInfo `json:"data"`
	Error TiktokError       `json:"error"`
}

// TiktokTokenResponse is returned by the v2 token endpoint. Failures come
// back with Error set and no token.
type TiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
