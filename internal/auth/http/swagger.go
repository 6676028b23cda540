package http

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// swaggerDoc is regenerated from the handler annotations with
// `swag init -g router.go -d internal/auth/http --outputTypes json -o internal/auth/http`.
//
//go:embed swagger.json
var swaggerDoc []byte

const swaggerDocPath = "/swagger/swagger.json"

// SwaggerDocHandler serves the checked-in Swagger 2.0 document.
func SwaggerDocHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(swaggerDoc)
	}
}

// SwaggerUIHandler serves the Swagger UI pointed at SwaggerDocHandler.
func SwaggerUIHandler() http.Handler {
	return httpSwagger.Handler(httpSwagger.URL(swaggerDocPath))
}
