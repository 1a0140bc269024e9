package transfer

type TweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type TweetRequest struct {
	Text  string      `json:"text"`
	Media *TweetMedia `json:"media,omitempty"`
}

type TweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type TwitterProcessingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type TwitterMediaUploadResponse struct {
	Data struct {
		ID             string                 `json:"id"`
		ProcessingInfo *TwitterProcessingInfo `json:"processing_info,omitempty"`
	} `json:"data"`
}

type TwitterError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
	Status int    `json:"status"`
}
