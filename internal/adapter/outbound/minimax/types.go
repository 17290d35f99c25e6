package minimax

import (
	"encoding/json"
)

// baseResp is carried by every MiniMax response body. A non-zero status code
// is a failure even when the HTTP status is 200.
type baseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

type apiResponse struct {
	BaseResp *baseResp `json:"base_resp,omitempty"`
}

func (r *apiResponse) base() *baseResp { return r.BaseResp }

type enveloped interface {
	base() *baseResp
}

type imageRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	ResponseFormat  string `json:"response_format"`
	N               int    `json:"n"`
	PromptOptimizer bool   `json:"prompt_optimizer"`
}

type imageResponse struct {
	apiResponse
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// imageData is the documented data object.
type imageData struct {
	ImageURLs   []string `json:"image_urls"`
	ImageBase64 []string `json:"image_base64"`
}

// imageItem is the list shape some gateways return for data.
type imageItem struct {
	URL     string `json:"url"`
	B64JSON string `json:"b64_json"`
}

type videoRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	Duration        int    `json:"duration"`
	Resolution      string `json:"resolution"`
	PromptOptimizer bool   `json:"prompt_optimizer"`
}

type videoResponse struct {
	apiResponse
	TaskID string `json:"task_id"`
}

type videoQueryResponse struct {
	apiResponse
	TaskID string     `json:"task_id"`
	Status string     `json:"status"`
	FileID flexString `json:"file_id"`
}

type fileRetrieveResponse struct {
	apiResponse
	File *struct {
		FileID      flexString `json:"file_id"`
		Bytes       int64      `json:"bytes"`
		Filename    string     `json:"filename"`
		DownloadURL string     `json:"download_url"`
	} `json:"file"`
}

// flexString accepts a JSON string or number. MiniMax returns file ids as
// strings on the query endpoint and as integers on the files endpoint.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Provider job states.
const (
	statusPreparing  = "Preparing"
	statusQueueing   = "Queueing"
	statusProcessing = "Processing"
	statusSuccess    = "Success"
	statusFail       = "Fail"
)
