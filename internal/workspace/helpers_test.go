package workspace

import (
	"net/http/httptest"

	"github.com/sells-group/leadflow/pkg/google"
)

func googleTestOptions(srv *httptest.Server) []google.Option {
	return []google.Option{
		google.WithEndpoint(srv.URL + "/"),
		google.WithHTTPClient(srv.Client()),
	}
}
