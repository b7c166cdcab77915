package models

type EnhancePostRequest struct {
	Input string `json:"input"`
}

type EnhancePostResponse struct {
	Output string `json:"output"`
}
