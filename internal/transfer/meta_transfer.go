package transfer

// Wire types shared by the Instagram and Facebook Graph APIs.

type GraphToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type GraphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

type GraphID struct {
	ID     string `json:"id"`
	PostID string `json:"post_id,omitempty"`
}

// ContainerStatus is returned when polling an Instagram media container.
type ContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type GraphPermalink struct {
	ID           string `json:"id"`
	Permalink    string `json:"permalink"`
	PermalinkURL string `json:"permalink_url"`
}

type PageAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type PageAccounts struct {
	Data []PageAccount `json:"data"`
}
