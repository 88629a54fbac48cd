package content

import "context"

// StaticResponse serves a canned response configured directly in YAML,
// used for admin/health-check style locations that don't forward
// anywhere.
type StaticResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

func NewStaticResponse(status int, contentType string, body []byte) *StaticResponse {
	if status == 0 {
		status = 200
	}
	return &StaticResponse{Status: status, ContentType: contentType, Body: body}
}

func (s *StaticResponse) Execute(ctx context.Context, req *IncomingRequest) (*Response, error) {
	return bufferedResponse(s.Status, s.ContentType, s.Body), nil
}
