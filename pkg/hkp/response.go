package hkp

import (
	"fmt"
	"net/http"
)

// Response is what a protocol handler produces: an HTTP status code,
// a content type and a body. The transport writes it out verbatim.
type Response struct {
	Code        int
	ContentType string
	Body        []byte
}

// Write sends the response on w.
func (resp Response) Write(w http.ResponseWriter) {
	ct := resp.ContentType
	if ct == "" {
		ct = "text/plain"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.Code)
	w.Write(resp.Body)
}

func textResponse(code int, format string, args ...interface{}) Response {
	return Response{
		Code:        code,
		ContentType: "text/plain",
		Body:        []byte(fmt.Sprintf(format, args...)),
	}
}
