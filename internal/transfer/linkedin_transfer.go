package transfer

type LinkedinDistribution struct {
	FeedDistribution               string   `json:"feedDistribution"`
	TargetEntities                 []string `json:"targetEntities"`
	ThirdPartyDistributionChannels []string `json:"thirdPartyDistributionChannels"`
}

type LinkedinMedia struct {
	ID      string `json:"id"`
	AltText string `json:"altText,omitempty"`
}

type LinkedinMultiImage struct {
	Images []LinkedinMedia `json:"images"`
}

type LinkedinContent struct {
	Media      *LinkedinMedia      `json:"media,omitempty"`
	MultiImage *LinkedinMultiImage `json:"multiImage,omitempty"`
}

type LinkedinPost struct {
	Author                    string               `json:"author"`
	Commentary                string               `json:"commentary"`
	Visibility                string               `json:"visibility"`
	Distribution              LinkedinDistribution `json:"distribution"`
	Content                   *LinkedinContent     `json:"content,omitempty"`
	LifecycleState            string               `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool                 `json:"isReshareDisabledByAuthor"`
}

type LinkedinInitializeUploadRequest struct {
	InitializeUploadRequest struct {
		Owner string `json:"owner"`
	} `json:"initializeUploadRequest"`
}

type LinkedinInitializeUploadResponse struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Image     string `json:"image"`
	} `json:"value"`
}

type LinkedinError struct {
	Status           int    `json:"status"`
	Message          string `json:"message"`
	ServiceErrorCode int    `json:"serviceErrorCode"`
}

type LinkedinVideoInitializeUploadRequest struct {
	InitializeUploadRequest struct {
		Owner           string `json:"owner"`
		FileSizeBytes   int64  `json:"fileSizeBytes"`
		UploadCaptions  bool   `json:"uploadCaptions"`
		UploadThumbnail bool   `json:"uploadThumbnail"`
	} `json:"initializeUploadRequest"`
}

type LinkedinUploadInstruction struct {
	UploadURL string `json:"uploadUrl"`
	FirstByte int64  `json:"firstByte"`
	LastByte  int64  `json:"lastByte"`
}

type LinkedinVideoInitializeUploadResponse struct {
	Value struct {
		Video              string                      `json:"video"`
		UploadToken        string                      `json:"uploadToken"`
		UploadInstructions []LinkedinUploadInstruction `json:"uploadInstructions"`
	} `json:"value"`
}

type LinkedinFinalizeUploadRequest struct {
	FinalizeUploadRequest struct {
		Video           string   `json:"video"`
		UploadToken     string   `json:"uploadToken"`
		UploadedPartIDs []string `json:"uploadedPartIds"`
	} `json:"finalizeUploadRequest"`
}
