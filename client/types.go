package client

// UploadOptions configures an upload operation.
type UploadOptions struct {
	Paths []string
}

// UploadResult represents the result of uploading a single file.
type UploadResult struct {
	LocalPath string `json:"local_path"`
	Link      string `json:"link"`
	Size      int64  `json:"size_bytes"`
	Err       error  `json:"-"` // nil on success
}

// DownloadOptions configures a download operation.
type DownloadOptions struct {
	Name      string // object name, bare id or full link
	LocalPath string // empty = derive from name, "-" = stdout
}

// DownloadResult represents the result of downloading a file.
type DownloadResult struct {
	Name        string `json:"name"`
	LocalPath   string `json:"local_path"`
	ETag        string `json:"etag"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// envelope mirrors the JSON body the server wraps every API response in.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}
